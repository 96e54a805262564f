package resiliency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), "append", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	boom := errors.New("network blip")
	err := fastPolicy(3).Do(context.Background(), "publish", func(context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryDomainErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), "execute", func(context.Context) error {
		calls++
		return cqrs.NewValidationError("name", "required")
	})

	require.Error(t, err)
	assert.True(t, cqrs.IsValidationError(err))
	assert.Equal(t, 1, calls, "domain rejections must not consume retry budget")
}

func TestDoDoesNotRetryFatalErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), "load", func(context.Context) error {
		calls++
		return cqrs.NewUnsupportedEventError("customer", "Mystery")
	})

	require.Error(t, err)
	assert.True(t, cqrs.IsFatal(err))
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := Policy{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffFactor: 2}
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, "slow", func(context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not observe context cancellation")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	p := Policy{}.normalize()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultInitialBackoff, p.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, p.MaxBackoff)
	assert.Equal(t, DefaultBackoffFactor, p.BackoffFactor)
}
