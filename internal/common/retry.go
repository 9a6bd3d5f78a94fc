package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

// ErrMaxRetries indicates that all retry attempts have been exhausted.
var ErrMaxRetries = errors.New("max retries exceeded")

// FailureClass partitions remote failures into retry-eligible and not.
type FailureClass int

const (
	// ClassTransient failures (network timeouts, 5xx-equivalents, rate
	// limits, expired credentials) are retried with backoff.
	ClassTransient FailureClass = iota
	// ClassPermanent failures (revoked auth, quota exhausted, malformed
	// requests) are surfaced immediately without retrying.
	ClassPermanent
)

// RetryableError wraps an error with an explicit failure class.
type RetryableError struct {
	Err   error
	Class FailureClass
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Transient marks err as retry-eligible.
func Transient(err error) error {
	return &RetryableError{Err: err, Class: ClassTransient}
}

// Permanent marks err as not retry-eligible.
func Permanent(err error) error {
	return &RetryableError{Err: err, Class: ClassPermanent}
}

// Classify returns the failure class for err. Errors without an explicit
// class default to transient so flaky network faults get their retries;
// cancellation is permanent because retrying a canceled context cannot
// succeed.
func Classify(err error) FailureClass {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Class
	}
	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	return ClassTransient
}

// Attempt records a single try of a remote operation.
type Attempt struct {
	Err    error
	Delay  time.Duration
	Number int
}

// RetryResult reports every attempt and the final outcome, so callers can
// observe retry behavior as data rather than digging through logs.
type RetryResult struct {
	Err      error
	Attempts []Attempt
}

// Succeeded reports whether the operation eventually completed.
func (r *RetryResult) Succeeded() bool {
	return r.Err == nil
}

// WithRetry executes operation with bounded attempts, exponential backoff,
// and jitter. Permanent failures abort immediately; transient failures are
// retried up to opts.MaxAttempts. Each attempt runs under its own timeout,
// so no single try can wait unboundedly.
func WithRetry(ctx context.Context, operation func(context.Context) error, opts service.RetryOptions) RetryResult {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = time.Minute
	}

	var result RetryResult
	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.AttemptTimeout)
		err := operation(attemptCtx)
		cancel()

		record := Attempt{Number: attempt, Err: err}

		if err == nil {
			result.Attempts = append(result.Attempts, record)
			return result
		}

		if Classify(err) == ClassPermanent {
			result.Attempts = append(result.Attempts, record)
			result.Err = err
			return result
		}

		if attempt == opts.MaxAttempts {
			result.Attempts = append(result.Attempts, record)
			result.Err = fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, opts.MaxAttempts, err)
			return result
		}

		// Jitter keeps independent clients from retrying in lockstep.
		jittered := delay + time.Duration(rand.Int63n(int64(delay)/2+1)) // #nosec G404
		record.Delay = jittered
		result.Attempts = append(result.Attempts, record)

		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", jittered,
			"error", err)

		select {
		case <-ctx.Done():
			result.Err = ctx.Err()
			return result
		case <-time.After(jittered):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}

	result.Err = ErrMaxRetries
	return result
}
