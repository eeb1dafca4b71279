// Package retry runs operations with exponential backoff.
//
// Only errors accepted by Config.RetryIf are retried; a nil RetryIf retries
// everything. ProbeConfig retries only errors marked transient.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryableError wraps an error to indicate it can be retried
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}

// NewRetryableError wraps an error as retryable
func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Config holds retry configuration
type Config struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFactor is the maximum jitter as a fraction of delay (0.0 to 1.0)
	JitterFactor float64

	// RetryIf decides whether an error is retried. Nil retries all errors.
	RetryIf func(error) bool

	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// ProbeConfig is used for HTTP probes of the editor: a handful of quick
// attempts that only retry transient failures.
func ProbeConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     15 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
		RetryIf:      IsTransientError,
	}
}

// Retrier handles retry logic. It is not safe for concurrent use.
type Retrier struct {
	config Config
	rng    *rand.Rand
}

// New creates a new Retrier with the given config
func New(config Config) *Retrier {
	return &Retrier{
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DoWithContext executes fn until it succeeds, fails permanently, retries run out or ctx is done
func (r *Retrier) DoWithContext(ctx context.Context, fn func() error) error {
	_, err := DoWithDataContext(ctx, r, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithDataContext executes a function that returns data with retry logic and context
func DoWithDataContext[T any](ctx context.Context, r *Retrier, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return result, fmt.Errorf("context cancelled after %d attempts: %w (last error: %v)", attempt, ctx.Err(), lastErr)
			}
			return result, ctx.Err()
		default:
		}

		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.shouldRetry(err) {
			return result, err
		}
		if attempt >= r.config.MaxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, fmt.Errorf("context cancelled during retry wait: %w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return true
}

func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if r.config.JitterFactor > 0 {
		delay += delay * r.config.JitterFactor * (r.rng.Float64()*2 - 1)
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// IsTimeoutError checks if error is a timeout
func IsTimeoutError(err error) bool {
	var te interface{ Timeout() bool }
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsTransientError reports whether err was marked retryable or is a timeout
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(err) || IsTimeoutError(err)
}
