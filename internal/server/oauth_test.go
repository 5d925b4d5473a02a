package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/vinyl/internal/shared"
)

func TestOAuthHandler(t *testing.T) {
	t.Run("forwards code and state", func(t *testing.T) {
		var gotCode, gotState string
		h := NewOAuthHandler("state-1", func(ctx context.Context, code, state string) error {
			gotCode, gotState = code, state
			return nil
		})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc123", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotCode != "abc123" || gotState != "state-1" {
			t.Errorf("exchange got %q %q", gotCode, gotState)
		}
		result := <-h.Result()
		if result.Error() != nil || result.Code != "abc123" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("rejects state mismatch", func(t *testing.T) {
		h := NewOAuthHandler("state-1", func(context.Context, string, string) error {
			t.Fatal("exchange should not run")
			return nil
		})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=abc123", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", result.Error())
		}
	})

	t.Run("reports provider denial", func(t *testing.T) {
		h := NewOAuthHandler("s", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&error=access_denied", nil))

		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler("s", func(context.Context, string, string) error {
			return shared.ErrAuthFailed
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected error result")
		}
	})

	t.Run("handles one callback only", func(t *testing.T) {
		calls := 0
		h := NewOAuthHandler("s", func(context.Context, string, string) error {
			calls++
			return nil
		})
		for range 2 {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", nil))
		}
		if calls != 1 {
			t.Errorf("expected one exchange, got %d", calls)
		}
	})
}
