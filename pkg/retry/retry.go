// Package retry implements bounded exponential backoff for transient
// failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig mirrors the endpoint defaults: three attempts, five second
// base delay, doubling between attempts.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 5 * time.Second}
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Abort marks an error as permanent so WithBackoff returns it immediately.
func Abort(err error) error {
	return &Permanent{Err: err}
}

// WithBackoff runs the operation up to MaxAttempts times, sleeping between
// attempts with doubling delay. A context timeout during the sleep or the
// call aborts the loop; a Permanent error returns at once.
func WithBackoff(ctx context.Context, cfg Config, operation func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("retry: failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// HTTPStatusRetryable reports whether a status code indicates a transient
// condition: server errors and rate limiting.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
