package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, err)
	return store
}

func testSnapshot() domain.Snapshot {
	snap := make(domain.Snapshot)
	snap.SetJob("simulator", "safetrade-1", domain.JobState{
		AlgorithmVars: domain.AlgorithmVars{
			LastBoughtPrice: decimal.RequireFromString("50000"),
			LastSoldPrice:   decimal.RequireFromString("51000"),
			WalletCrypto:    decimal.RequireFromString("0.002"),
		},
		ExchangeVars: domain.ExchangeVars{
			Codename:     "BTC_EUR",
			Fee:          decimal.RequireFromString("0.001"),
			WalletCrypto: decimal.RequireFromString("0.002"),
		},
	})
	return snap
}

func TestStoreMissingFileYieldsEmptySnapshot(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, snap)
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := testSnapshot()

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)

	state, ok := got.Job("simulator", "safetrade-1")
	require.True(t, ok)
	wantState, _ := want.Job("simulator", "safetrade-1")
	require.True(t, state.AlgorithmVars.LastBoughtPrice.Equal(wantState.AlgorithmVars.LastBoughtPrice))
	require.True(t, state.AlgorithmVars.LastSoldPrice.Equal(wantState.AlgorithmVars.LastSoldPrice))
	require.True(t, state.ExchangeVars.Fee.Equal(wantState.ExchangeVars.Fee))
	require.Equal(t, "BTC_EUR", state.ExchangeVars.Codename)
}

func TestStoreSaveSupersedesPreviousSnapshot(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(testSnapshot()))

	next := make(domain.Snapshot)
	next.SetJob("binance", "other-job", domain.JobState{})
	require.NoError(t, store.Save(next))

	got, err := store.Load()
	require.NoError(t, err)

	_, ok := got.Job("simulator", "safetrade-1")
	require.False(t, ok, "old snapshot content must be fully superseded")
	_, ok = got.Job("binance", "other-job")
	require.True(t, ok)
}

func TestStoreLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)

	require.NoError(t, store.Save(testSnapshot()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "snapshot.json", entries[0].Name())
}
