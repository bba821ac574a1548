package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func shortSettleWindow(t *testing.T, window, poll time.Duration) {
	t.Helper()
	prevWindow, prevPoll := bybitSettleWindow, bybitSettlePoll
	bybitSettleWindow, bybitSettlePoll = window, poll
	t.Cleanup(func() {
		bybitSettleWindow, bybitSettlePoll = prevWindow, prevPoll
	})
}

func TestSettledDeltaImmediateFill(t *testing.T) {
	before := decimal.NewFromInt(100)

	reads := 0
	delta, err := settledDelta(context.Background(), before, func(context.Context) (decimal.Decimal, error) {
		reads++
		return decimal.NewFromInt(150), nil
	})

	require.NoError(t, err)
	require.True(t, delta.Equal(decimal.NewFromInt(50)), "got %s", delta)
	require.Equal(t, 1, reads)
}

func TestSettledDeltaWaitsForSettlement(t *testing.T) {
	shortSettleWindow(t, time.Second, time.Millisecond)
	before := decimal.NewFromInt(100)

	// the first reads still see the pre-order balance
	reads := 0
	delta, err := settledDelta(context.Background(), before, func(context.Context) (decimal.Decimal, error) {
		reads++
		if reads < 3 {
			return before, nil
		}
		return decimal.NewFromInt(160), nil
	})

	require.NoError(t, err)
	require.True(t, delta.Equal(decimal.NewFromInt(60)), "got %s", delta)
	require.Equal(t, 3, reads)
}

func TestSettledDeltaZeroAfterWindow(t *testing.T) {
	shortSettleWindow(t, 10*time.Millisecond, time.Millisecond)
	before := decimal.NewFromInt(100)

	delta, err := settledDelta(context.Background(), before, func(context.Context) (decimal.Decimal, error) {
		return before, nil
	})

	require.NoError(t, err)
	require.True(t, delta.IsZero(), "got %s", delta)
}

func TestSettledDeltaReadError(t *testing.T) {
	_, err := settledDelta(context.Background(), decimal.NewFromInt(100), func(context.Context) (decimal.Decimal, error) {
		return decimal.Decimal{}, errors.New("balance endpoint down")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "balance endpoint down")
}

func TestSettledDeltaContextCancelled(t *testing.T) {
	shortSettleWindow(t, time.Minute, time.Minute)
	before := decimal.NewFromInt(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := settledDelta(ctx, before, func(context.Context) (decimal.Decimal, error) {
		return before, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
