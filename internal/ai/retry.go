package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RetryConfig controls API retry behavior.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultRetryConfig returns sane retry defaults for fix generation.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     15 * time.Second,
		Timeout:        60 * time.Second,
	}
}

// retryWithBackoff executes fn with per-attempt timeouts and
// exponential backoff. Non-retriable errors abort immediately.
func retryWithBackoff(ctx context.Context, retry RetryConfig, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := retry.InitialBackoff

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				slog.Info("api call succeeded after retries", "operation", operation, "retries", attempt)
			}
			return nil
		}
		lastErr = err

		if !isRetriableError(err) {
			return fmt.Errorf("%s failed: %w", operation, err)
		}
		if attempt == retry.MaxRetries {
			break
		}

		slog.Warn("api call failed, backing off", "operation", operation,
			"attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > retry.MaxBackoff {
			backoff = retry.MaxBackoff
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", operation, retry.MaxRetries, lastErr)
}

// isRetriableError distinguishes transient failures (rate limits,
// overload, network) from permanent ones (auth, bad request).
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "429", "overloaded", "529", "500", "502", "503",
		"timeout", "deadline exceeded", "connection reset", "connection refused",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
