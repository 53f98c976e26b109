package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig returns sensible defaults for rate limit retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// RetryClient wraps a client with automatic retry on transient errors.
// Only request setup is retried; once a stream has started delivering
// events its failures are returned as is.
type RetryClient struct {
	inner  Client
	config RetryConfig
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WrapWithRetry wraps a client with retry logic.
func WrapWithRetry(c Client, config RetryConfig, logger zerolog.Logger) *RetryClient {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryClient{inner: c, config: config, logger: logger, sleep: sleepCtx}
}

func (r *RetryClient) Name() string {
	return r.inner.Name()
}

func (r *RetryClient) Converse(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := r.do(ctx, func() error {
		var err error
		resp, err = r.inner.Converse(ctx, req)
		return err
	})
	return resp, err
}

func (r *RetryClient) ConverseStream(ctx context.Context, req Request) (Stream, error) {
	var stream Stream
	err := r.do(ctx, func() error {
		var err error
		stream, err = r.inner.ConverseStream(ctx, req)
		return err
	})
	return stream, err
}

func (r *RetryClient) do(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		lastErr = call()
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
		// Don't retry if context is already cancelled
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		wait := r.calculateBackoff(attempt, lastErr)
		r.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("retrying model request")
		if err := r.sleep(ctx, wait); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isRetryable returns true if the error is a transient error worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// HTTP status codes and rate limit messages
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "throttling") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "overloaded") {
		return true
	}

	// Connection errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}

// retryAfterRegex matches Retry-After values in error messages.
var retryAfterRegex = regexp.MustCompile(`(?i)retry[- ]?after[:\s]+(\d+)`)

// calculateBackoff computes the wait duration for a retry attempt.
func (r *RetryClient) calculateBackoff(attempt int, err error) time.Duration {
	if err != nil {
		if matches := retryAfterRegex.FindStringSubmatch(err.Error()); len(matches) > 1 {
			if secs, parseErr := strconv.Atoi(matches[1]); parseErr == nil && secs > 0 {
				return min(time.Duration(secs)*time.Second, r.config.MaxBackoff)
			}
		}
	}

	// Exponential backoff: base * 2^(attempt-1)
	backoff := float64(r.config.BaseBackoff) * math.Pow(2, float64(attempt-1))

	// Add jitter: +/- 25%
	jitter := (rand.Float64() - 0.5) * 0.5 * backoff
	backoff += jitter

	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}
