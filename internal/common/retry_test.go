package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:    attempts,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		AttemptTimeout: time.Second,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want FailureClass
	}{
		{Transient(errors.New("flaky network")), "explicit transient", ClassTransient},
		{Permanent(errors.New("revoked auth")), "explicit permanent", ClassPermanent},
		{errors.New("unclassified"), "unclassified defaults to transient", ClassTransient},
		{context.Canceled, "cancellation is permanent", ClassPermanent},
		{Permanent(context.DeadlineExceeded), "explicit class wins over cause", ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, fastRetry(3))

	assert.True(t, result.Succeeded())
	assert.Equal(t, 1, calls)
	require.Len(t, result.Attempts, 1)
	assert.NoError(t, result.Attempts[0].Err)
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("not yet"))
		}
		return nil
	}, fastRetry(5))

	assert.True(t, result.Succeeded())
	assert.Equal(t, 3, calls)
	require.Len(t, result.Attempts, 3)
	assert.Error(t, result.Attempts[0].Err)
	assert.Error(t, result.Attempts[1].Err)
	assert.NoError(t, result.Attempts[2].Err)
}

func TestWithRetry_PermanentAbortsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("credentials revoked")
	result := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return Permanent(cause)
	}, fastRetry(5))

	assert.False(t, result.Succeeded())
	assert.Equal(t, 1, calls)
	assert.Len(t, result.Attempts, 1)
	assert.ErrorIs(t, result.Err, cause)
}

func TestWithRetry_Exhaustion(t *testing.T) {
	calls := 0
	result := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return Transient(errors.New("still down"))
	}, fastRetry(3))

	assert.False(t, result.Succeeded())
	assert.Equal(t, 3, calls)
	assert.Len(t, result.Attempts, 3)
	assert.ErrorIs(t, result.Err, ErrMaxRetries)
}

func TestWithRetry_BackoffGrows(t *testing.T) {
	result := WithRetry(context.Background(), func(context.Context) error {
		return Transient(errors.New("down"))
	}, fastRetry(4))

	require.Len(t, result.Attempts, 4)
	// Every non-final attempt records its delay; jitter only adds, so each
	// delay is at least the un-jittered base.
	base := time.Millisecond
	for _, attempt := range result.Attempts[:3] {
		assert.GreaterOrEqual(t, attempt.Delay, base)
		base *= 2
		if base > 5*time.Millisecond {
			base = 5 * time.Millisecond
		}
	}
	// Final attempt has no delay after it.
	assert.Zero(t, result.Attempts[3].Delay)
}

func TestWithRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := WithRetry(ctx, func(context.Context) error {
		calls++
		cancel()
		return Transient(errors.New("down"))
	}, fastRetry(5))

	assert.False(t, result.Succeeded())
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestWithRetry_DefaultsApplied(t *testing.T) {
	// Zero options must not loop forever or panic; defaults kick in.
	calls := 0
	result := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, service.RetryOptions{})

	assert.True(t, result.Succeeded())
	assert.Equal(t, 1, calls)
}
