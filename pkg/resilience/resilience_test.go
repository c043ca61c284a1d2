package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test-open", 2, time.Hour)
	boom := errors.New("provider down")

	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), "send", func(ctx context.Context) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, b.CurrentState())

	called := false
	err := b.Execute(context.Background(), "send", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test-reset", 2, time.Hour)
	boom := errors.New("flaky")

	require.Error(t, b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return boom
	}))
	require.NoError(t, b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return nil
	}))
	require.Error(t, b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return boom
	}))

	assert.Equal(t, StateClosed, b.CurrentState())
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	b := NewBreaker("test-recover", 1, 10*time.Millisecond)

	require.Error(t, b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return errors.New("down")
	}))
	require.Equal(t, StateOpen, b.CurrentState())

	time.Sleep(20 * time.Millisecond)

	err := b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.CurrentState())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := NewBreaker("test-reopen", 1, 10*time.Millisecond)

	require.Error(t, b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return errors.New("down")
	}))

	time.Sleep(20 * time.Millisecond)

	require.Error(t, b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return errors.New("still down")
	}))
	assert.Equal(t, StateOpen, b.CurrentState())

	err := b.Execute(context.Background(), "send", func(ctx context.Context) error {
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
}
