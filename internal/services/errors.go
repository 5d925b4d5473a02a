package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/vinyl/internal/shared"
)

// APIError is a non-2xx response from the provider or from the facade.
//
// It unwraps to the matching sentinel in [shared] so callers dispatch with [errors.Is].
type APIError struct {
	Status     int
	Message    string
	Reason     string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, e.Reason)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case e.Status == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.Reason == "NO_ACTIVE_DEVICE",
		e.Status == http.StatusNotFound && strings.Contains(strings.ToLower(e.Message), "no active device"):
		return shared.ErrNoActiveDevice
	case e.Reason == "PREMIUM_REQUIRED":
		return shared.ErrPremiumRequired
	default:
		return shared.ErrProviderError
	}
}

// Retryable reports whether repeating the request may succeed: 429 and 5xx.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// spotifyErrorBody is the provider's error shape: {"error": {"status", "message", "reason"}}.
type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// parseSpotifyError builds an [APIError] from a provider response body.
func parseSpotifyError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		Status:     resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	var parsed spotifyErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Reason = parsed.Error.Reason
	} else if len(body) > 0 && len(body) < 256 {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// parseRetryAfter reads a Retry-After header given in seconds. Missing or malformed values yield 0.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
