// Package exchange defines the venue connector contract and its
// implementations: a deterministic simulator and live Binance/Bybit spot
// connectors.
package exchange

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

var (
	// ErrPriceUnavailable marks an unreachable or malformed venue price feed.
	// Connectors never retry; the next cycle retries naturally.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInsufficientBalance marks a trade request exceeding the wallet.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Connector executes trades and reports balances for one venue wallet pair.
// The connector owns the wallet state and is the single source of truth for
// what actually happened: callers must re-read balances after every trade
// attempt and never mutate them directly.
type Connector interface {
	// Name returns the venue codename, used as the snapshot bucket key.
	Name() string
	// Fee returns the venue fee as a fraction (e.g. 0.001).
	Fee() decimal.Decimal
	// Pair returns the trading pair this connector operates on.
	Pair() domain.Pair

	// CurrentPrice returns the venue's current market price.
	// Wraps ErrPriceUnavailable when the venue cannot be reached or returns
	// malformed data.
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
	// CryptoBalance returns the authoritative base-currency balance.
	CryptoBalance(ctx context.Context) (decimal.Decimal, error)
	// FiatBalance returns the authoritative quote-currency balance.
	FiatBalance(ctx context.Context) (decimal.Decimal, error)

	// Buy spends fiatToSpend quote currency at market price and returns the
	// crypto actually credited by the venue, which may differ from any
	// pre-computed expectation. Wraps ErrInsufficientBalance when
	// fiatToSpend exceeds the fiat balance.
	Buy(ctx context.Context, fiatToSpend decimal.Decimal) (decimal.Decimal, error)
	// Sell sells cryptoToSell base currency at market price and returns the
	// fiat actually credited by the venue. Wraps ErrInsufficientBalance when
	// cryptoToSell exceeds the crypto balance.
	Sell(ctx context.Context, cryptoToSell decimal.Decimal) (decimal.Decimal, error)

	// CurrentVars serializes fee, pair and wallet balances for persistence.
	CurrentVars() domain.ExchangeVars
	// RestoreVars restores connector state from a persisted snapshot.
	// Called only at construction, never mid-cycle.
	RestoreVars(vars domain.ExchangeVars) error
}
