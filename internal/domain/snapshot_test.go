package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestExchangeVarsIsZero(t *testing.T) {
	require.True(t, ExchangeVars{}.IsZero())

	require.False(t, ExchangeVars{Codename: "BTC_EUR"}.IsZero())
	require.False(t, ExchangeVars{Fee: decimal.NewFromFloat(0.001)}.IsZero())
	require.False(t, ExchangeVars{WalletCrypto: decimal.NewFromInt(1)}.IsZero())
	require.False(t, ExchangeVars{WalletFiat: decimal.NewFromInt(100)}.IsZero())

	// explicit zeros are still zero seed vars
	require.True(t, ExchangeVars{Fee: decimal.Zero, WalletFiat: decimal.NewFromInt(0)}.IsZero())
}

func TestSnapshotJobBuckets(t *testing.T) {
	snap := make(Snapshot)

	_, ok := snap.Job("simulator", "job-1")
	require.False(t, ok)

	state := JobState{
		AlgorithmVars: AlgorithmVars{LastBoughtPrice: decimal.NewFromInt(90)},
		ExchangeVars:  ExchangeVars{Codename: "BTC_EUR"},
	}
	snap.SetJob("simulator", "job-1", state)

	got, ok := snap.Job("simulator", "job-1")
	require.True(t, ok)
	require.True(t, got.AlgorithmVars.LastBoughtPrice.Equal(decimal.NewFromInt(90)))

	_, ok = snap.Job("binance", "job-1")
	require.False(t, ok)
}
