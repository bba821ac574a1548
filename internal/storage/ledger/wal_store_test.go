package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

func newTestStore(t *testing.T) *WALStore {
	t.Helper()
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testResult(jobID string, action domain.Action) domain.ActionResult {
	amount := decimal.RequireFromString("0.001998")
	return domain.ActionResult{
		JobID:            jobID,
		Exchange:         "simulator",
		Action:           action,
		Status:           domain.StatusSuccess,
		TransactedAmount: &amount,
		WalletCrypto:     amount,
		CurrentPrice:     decimal.RequireFromString("50000"),
		Timestamp:        time.Now().UTC(),
	}
}

func TestWALStoreAppendPreservesInsertionOrder(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(testResult(fmt.Sprintf("job-%d", i), domain.ActionBuy)))
	}

	entries, err := store.EntriesAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		require.Equal(t, fmt.Sprintf("job-%d", i), entry.Result.JobID)
	}
}

func TestWALStoreEntriesAfterSkipsOlderRecords(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append(testResult("job-a", domain.ActionBuy)))
	mark := store.CurrentIndex()
	require.NoError(t, store.Append(testResult("job-b", domain.ActionSell)))

	entries, err := store.EntriesAfter(mark)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "job-b", entries[0].Result.JobID)
	require.Equal(t, domain.ActionSell, entries[0].Result.Action)
}

func TestWALStoreRoundTripsResultFields(t *testing.T) {
	store := newTestStore(t)

	want := testResult("job-a", domain.ActionBuy)
	require.NoError(t, store.Append(want))

	entries, err := store.EntriesAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0].Result
	require.Equal(t, want.JobID, got.JobID)
	require.Equal(t, want.Exchange, got.Exchange)
	require.Equal(t, want.Action, got.Action)
	require.Equal(t, want.Status, got.Status)
	require.NotNil(t, got.TransactedAmount)
	require.True(t, got.TransactedAmount.Equal(*want.TransactedAmount))
	require.True(t, got.CurrentPrice.Equal(want.CurrentPrice))
}

func TestWALStoreHoldResultHasNoAmount(t *testing.T) {
	store := newTestStore(t)

	result := testResult("job-a", domain.ActionHold)
	result.Status = domain.StatusNone
	result.TransactedAmount = nil
	require.NoError(t, store.Append(result))

	entries, err := store.EntriesAfter(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.ActionHold, entries[0].Result.Action)
	require.Equal(t, domain.StatusNone, entries[0].Result.Status)
	require.Nil(t, entries[0].Result.TransactedAmount)
}

func TestWALStoreRejectsResultWithoutJobID(t *testing.T) {
	store := newTestStore(t)
	require.Error(t, store.Append(domain.ActionResult{Exchange: "simulator"}))
}
