package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, services.SuccessResponse{Success: true})
}

func errorBody(msg string, code int, details string) services.ErrorResponse {
	return services.ErrorResponse{Error: msg, Code: code, Details: details}
}

func writeRateLimited(w http.ResponseWriter, wait time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	writeJSON(w, http.StatusTooManyRequests, errorBody("rate limited, please wait", http.StatusTooManyRequests, ""))
}

// classify maps an error to the status and user-facing message of the envelope.
func classify(err error) (int, string, string) {
	var apiErr *services.APIError
	isAPI := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not authenticated", ""
	case errors.Is(err, shared.ErrNoActiveDevice):
		return http.StatusNotFound, "no active device: open Spotify on a device and try again", "NO_ACTIVE_DEVICE"
	case errors.Is(err, shared.ErrPremiumRequired):
		return http.StatusForbidden, "Spotify Premium is required for playback control", "PREMIUM_REQUIRED"
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited, please wait", ""
	case errors.Is(err, shared.ErrNoteNotFound):
		return http.StatusNotFound, "note not found", ""
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrStateMismatch):
		return http.StatusBadRequest, "invalid request", err.Error()
	case isAPI:
		return apiErr.Status, "provider request failed", apiErr.Message
	case errors.Is(err, shared.ErrAuthFailed), errors.Is(err, shared.ErrRefreshFailed):
		return http.StatusInternalServerError, "authentication failed", ""
	case errors.Is(err, shared.ErrStoreFailure):
		return http.StatusInternalServerError, "storage error", ""
	default:
		return http.StatusInternalServerError, "internal error", ""
	}
}

// writeError renders err as the failure envelope, forwarding any Retry-After hint.
func writeError(w http.ResponseWriter, err error) {
	status, msg, details := classify(err)
	if status == http.StatusTooManyRequests {
		var apiErr *services.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(apiErr.RetryAfter.Seconds()))))
		}
	}
	writeJSON(w, status, errorBody(msg, status, details))
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
