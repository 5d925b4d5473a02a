package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/vinyl/internal/shared"
)

func TestAPIError(t *testing.T) {
	tc := []struct {
		name string
		err  *APIError
		want error
	}{
		{name: "unauthorized", err: &APIError{Status: 401}, want: shared.ErrNotAuthenticated},
		{name: "rate limited", err: &APIError{Status: 429}, want: shared.ErrRateLimited},
		{name: "no active device reason", err: &APIError{Status: 404, Reason: "NO_ACTIVE_DEVICE"}, want: shared.ErrNoActiveDevice},
		{name: "no active device message", err: &APIError{Status: 404, Message: "Player command failed: No active device found"}, want: shared.ErrNoActiveDevice},
		{name: "premium", err: &APIError{Status: 403, Reason: "PREMIUM_REQUIRED"}, want: shared.ErrPremiumRequired},
		{name: "server error", err: &APIError{Status: 500}, want: shared.ErrProviderError},
		{name: "forbidden", err: &APIError{Status: 403}, want: shared.ErrProviderError},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("calling: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Errorf("expected %v to match %v", tt.err, tt.want)
			}
			if StatusOf(wrapped) != tt.err.Status {
				t.Errorf("StatusOf() = %d, want %d", StatusOf(wrapped), tt.err.Status)
			}
		})
	}

	t.Run("parse spotify body", func(t *testing.T) {
		resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": {"3"}}}
		body := []byte(`{"error":{"status":429,"message":"API rate limit exceeded"}}`)

		apiErr := parseSpotifyError(resp, body)
		if apiErr.Message != "API rate limit exceeded" || apiErr.RetryAfter != 3*time.Second {
			t.Errorf("unexpected error %+v", apiErr)
		}
	})

	t.Run("parse non-json body", func(t *testing.T) {
		resp := &http.Response{StatusCode: 502, Header: http.Header{}}
		apiErr := parseSpotifyError(resp, []byte("upstream down"))
		if apiErr.Message != "upstream down" || apiErr.RetryAfter != 0 {
			t.Errorf("unexpected error %+v", apiErr)
		}
	})

	t.Run("StatusOf plain error", func(t *testing.T) {
		if StatusOf(errors.New("x")) != 0 {
			t.Error("expected 0 for non-api error")
		}
	})
}
