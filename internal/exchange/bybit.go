package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

// BybitName is the registry key and snapshot bucket of the Bybit connector.
const BybitName = "bybit"

// Market fills settle into the unified-account balance asynchronously, so
// the post-order balance is polled until it moves away from the pre-order
// value, bounded by the settle window.
var (
	bybitSettleWindow = 5 * time.Second
	bybitSettlePoll   = 250 * time.Millisecond
)

// Bybit is a live spot connector backed by the Bybit V5 API.
//
// The V5 order endpoint does not return fill quantities, so executed amounts
// are derived from the unified-account balance delta around the order. That
// delta is what the venue actually credited, which is exactly what the
// connector contract asks for.
type Bybit struct {
	mu     sync.RWMutex
	client *bybit.Client
	pair   domain.Pair
	fee    decimal.Decimal

	lastCrypto decimal.Decimal
	lastFiat   decimal.Decimal
}

// NewBybit creates a live Bybit connector for the pair.
func NewBybit(client *bybit.Client, pair domain.Pair, fee decimal.Decimal) (*Bybit, error) {
	if client == nil {
		return nil, errors.New("bybit client is required")
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.Errorf("fee must be a fraction in [0,1), got %s", fee.String())
	}
	return &Bybit{client: client, pair: pair, fee: fee}, nil
}

// Name returns the venue codename.
func (b *Bybit) Name() string { return BybitName }

// Fee returns the configured venue fee.
func (b *Bybit) Fee() decimal.Decimal { return b.fee }

// Pair returns the trading pair.
func (b *Bybit) Pair() domain.Pair { return b.pair }

// CurrentPrice fetches the current spot price from Bybit.
func (b *Bybit) CurrentPrice(_ context.Context) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(b.pair.Symbol())

	result, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: %s", b.pair.String(), err)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: empty ticker list", b.pair.String())
	}

	price, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: malformed price %q",
			b.pair.String(), result.Result.Spot.List[0].LastPrice)
	}
	return price, nil
}

// CryptoBalance returns the base-currency balance of the unified account.
func (b *Bybit) CryptoBalance(ctx context.Context) (decimal.Decimal, error) {
	return b.balance(ctx, b.pair.From, &b.lastCrypto)
}

// FiatBalance returns the quote-currency balance of the unified account.
func (b *Bybit) FiatBalance(ctx context.Context) (decimal.Decimal, error) {
	return b.balance(ctx, b.pair.To, &b.lastFiat)
}

func (b *Bybit) balance(_ context.Context, currency string, cache *decimal.Decimal) (decimal.Decimal, error) {
	res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get bybit account balance")
	}
	if len(res.Result.List) == 0 {
		return decimal.Zero, nil
	}

	for _, coin := range res.Result.List[0].Coin {
		if string(coin.Coin) != currency {
			continue
		}
		balance, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "failed to parse %s balance", currency)
		}

		b.mu.Lock()
		*cache = balance
		b.mu.Unlock()

		return balance, nil
	}
	return decimal.Zero, nil
}

// Buy places a market buy spending fiatToSpend quote currency. For spot
// market buys Bybit interprets Qty as the quote amount.
func (b *Bybit) Buy(ctx context.Context, fiatToSpend decimal.Decimal) (decimal.Decimal, error) {
	available, err := b.FiatBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if fiatToSpend.GreaterThan(available) {
		return decimal.Decimal{}, errors.Wrapf(ErrInsufficientBalance,
			"have %s %s, need %s", available.String(), b.pair.To, fiatToSpend.String())
	}

	cryptoBefore, err := b.CryptoBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	_, err = b.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:  "spot",
		Symbol:    bybit.SymbolV5(b.pair.Symbol()),
		Side:      bybit.SideBuy,
		OrderType: bybit.OrderTypeMarket,
		Qty:       fiatToSpend.RoundFloor(8).String(),
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to create buy order")
	}

	return settledDelta(ctx, cryptoBefore, b.CryptoBalance)
}

// Sell places a market sell of cryptoToSell base currency.
func (b *Bybit) Sell(ctx context.Context, cryptoToSell decimal.Decimal) (decimal.Decimal, error) {
	available, err := b.CryptoBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if cryptoToSell.GreaterThan(available) {
		return decimal.Decimal{}, errors.Wrapf(ErrInsufficientBalance,
			"have %s %s, need %s", available.String(), b.pair.From, cryptoToSell.String())
	}

	fiatBefore, err := b.FiatBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	_, err = b.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:  "spot",
		Symbol:    bybit.SymbolV5(b.pair.Symbol()),
		Side:      bybit.SideSell,
		OrderType: bybit.OrderTypeMarket,
		Qty:       cryptoToSell.RoundFloor(8).String(),
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to create sell order")
	}

	return settledDelta(ctx, fiatBefore, b.FiatBalance)
}

// settledDelta polls read until the balance moves away from before, then
// returns the credited delta. A balance that never moves within the window
// reports a zero delta, which the engine classifies as a partial fill.
func settledDelta(ctx context.Context, before decimal.Decimal, read func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	deadline := time.Now().Add(bybitSettleWindow)
	for {
		after, err := read(ctx)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if !after.Equal(before) || !time.Now().Before(deadline) {
			return after.Sub(before), nil
		}

		select {
		case <-ctx.Done():
			return decimal.Decimal{}, ctx.Err()
		case <-time.After(bybitSettlePoll):
		}
	}
}

// CurrentVars serializes fee, pair and the last observed balances.
func (b *Bybit) CurrentVars() domain.ExchangeVars {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.ExchangeVars{
		Codename:     b.pair.String(),
		Fee:          b.fee,
		WalletCrypto: b.lastCrypto,
		WalletFiat:   b.lastFiat,
	}
}

// RestoreVars restores the fee. Wallet balances are ignored: the venue is
// authoritative and is queried live at engine initialization.
func (b *Bybit) RestoreVars(vars domain.ExchangeVars) error {
	if !vars.Fee.IsZero() {
		if vars.Fee.IsNegative() || vars.Fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return errors.Errorf("fee must be a fraction in [0,1), got %s", vars.Fee.String())
		}
		b.fee = vars.Fee
	}
	return nil
}
