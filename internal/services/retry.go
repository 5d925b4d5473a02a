package services

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("github.com/desertthunder/vinyl/internal/services")

// RetryPolicy bounds [WithRetry].
type RetryPolicy struct {
	MaxAttempts       int           // total calls, including the first
	BaseDelay         time.Duration // backoff unit for transient failures, doubled per failure
	DefaultRetryAfter time.Duration // wait on 429 when the provider sends no hint

	// Sleep waits for d or until ctx is done. Tests replace it to avoid real delays.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *log.Logger
}

// DefaultRetryPolicy allows three attempts with 1s backoff and a 1s rate-limit wait.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, DefaultRetryAfter: time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.DefaultRetryAfter <= 0 {
		p.DefaultRetryAfter = time.Second
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WithRetry runs op until it succeeds, returns a terminal error, or MaxAttempts calls have been made.
//
// Rate-limited failures wait for the provider's Retry-After hint without advancing the
// backoff exponent. Other transient failures wait BaseDelay * 2^n where n counts previous
// transient failures. The last error is returned unchanged.
func WithRetry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	ctx, span := tracer.Start(ctx, "services.retry", trace.WithAttributes(attribute.Int("retry.max_attempts", p.MaxAttempts)))
	defer span.End()

	attempts := 0
	result, err := retryLoop(ctx, p, func(ctx context.Context) (T, error) {
		attempts++
		return op(ctx)
	})
	span.SetAttributes(attribute.Int("retry.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func retryLoop[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
		backoff int
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		wait, retry := p.delay(err, backoff)
		if !retry {
			return zero, err
		}
		if !errors.Is(err, shared.ErrRateLimited) {
			backoff++
		}

		if p.Logger != nil {
			p.Logger.Debug("retrying", "attempt", attempt, "wait", wait, "err", err)
		}
		if err := p.Sleep(ctx, wait); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// Do is [WithRetry] for operations without a result.
func Do(ctx context.Context, p RetryPolicy, op func(context.Context) error) error {
	_, err := WithRetry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// delay classifies err and returns how long to wait before the next attempt.
func (p RetryPolicy) delay(err error, backoff int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 429:
			if apiErr.RetryAfter > 0 {
				return apiErr.RetryAfter, true
			}
			return p.DefaultRetryAfter, true
		case apiErr.Retryable():
			return p.BaseDelay << backoff, true
		default:
			return 0, false
		}
	}

	if errors.Is(err, shared.ErrRateLimited) {
		return p.DefaultRetryAfter, true
	}

	for _, terminal := range []error{
		shared.ErrNotAuthenticated,
		shared.ErrNoActiveDevice,
		shared.ErrPremiumRequired,
		shared.ErrInvalidInput,
		shared.ErrMissingArgument,
		shared.ErrNoteNotFound,
	} {
		if errors.Is(err, terminal) {
			return 0, false
		}
	}

	// transport failures and anything unclassified
	return p.BaseDelay << backoff, true
}
