package cloud

import (
	"context"
	"errors"
	"time"

	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	MaxRetries        = 3
	InitialRetryDelay = time.Second
)

// Backoff configures RetryWithBackoff. The delay before retry n (0-based) is
// InitialDelay * 2^n, without jitter.
type Backoff struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error
	Logger       zerolog.Logger
}

// DefaultBackoff is 3 attempts starting at 1s.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:  MaxRetries,
		InitialDelay: InitialRetryDelay,
		Sleep:        sleepContext,
		Logger:       log.Logger,
	}
}

// RetryWithBackoff runs op until it succeeds, fails with a non-retryable error,
// or runs out of attempts. Only *ConnectionError and *APIError are retried; the
// last attempt's error is returned as-is.
func RetryWithBackoff[T any](ctx context.Context, b Backoff, op func(context.Context) (T, error)) (T, error) {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = MaxRetries
	}
	if b.Sleep == nil {
		b.Sleep = sleepContext
	}

	var zero T
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !Retryable(err) || attempt == b.MaxAttempts-1 {
			return zero, err
		}

		delay := b.InitialDelay * time.Duration(1<<attempt)
		b.Logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", b.MaxAttempts).
			Dur("delay", delay).
			Msg("attempt failed, retrying")
		if sleepErr := b.Sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}

// Retryable reports whether err is a connection or API failure. Authentication
// failures are never retryable.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ferrors.ErrAuth) {
		return false
	}
	var connErr *ConnectionError
	var apiErr *APIError
	return errors.As(err, &connErr) || errors.As(err, &apiErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
