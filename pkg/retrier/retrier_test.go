package retrier

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond))

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(5))

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(2))

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("permanent")
	})

	require.Error(t, err)
	require.Contains(t, err.Error(), "permanent")
	// first attempt plus two retries
	require.Equal(t, 3, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	r := New(WithInitialInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func(ctx context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retrier did not stop on context cancellation")
	}
}

func TestDoWithData(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(3))

	calls := 0
	got, err := DoWithData(r, context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.Equal(t, 2, calls)
}

func TestDoWithDataReturnsZeroValueOnFailure(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(1))

	got, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("permanent")
	})

	require.Error(t, err)
	require.Empty(t, got)
}
