package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

// BinanceName is the registry key and snapshot bucket of the Binance connector.
const BinanceName = "binance"

const binanceOrderIDPrefix = "safetrade-"

// Binance is a live spot connector backed by the Binance REST API.
// Balances are always read from the venue, never cached between cycles.
type Binance struct {
	mu     sync.RWMutex
	client *binance.Client
	pair   domain.Pair
	fee    decimal.Decimal

	// last balances observed, reported in CurrentVars for the snapshot
	lastCrypto decimal.Decimal
	lastFiat   decimal.Decimal
}

// NewBinance creates a live Binance connector for the pair.
func NewBinance(client *binance.Client, pair domain.Pair, fee decimal.Decimal) (*Binance, error) {
	if client == nil {
		return nil, errors.New("binance client is required")
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.Errorf("fee must be a fraction in [0,1), got %s", fee.String())
	}
	return &Binance{client: client, pair: pair, fee: fee}, nil
}

// Name returns the venue codename.
func (b *Binance) Name() string { return BinanceName }

// Fee returns the configured venue fee.
func (b *Binance) Fee() decimal.Decimal { return b.fee }

// Pair returns the trading pair.
func (b *Binance) Pair() domain.Pair { return b.pair }

// CurrentPrice fetches the current market price from Binance.
func (b *Binance) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(b.pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: %s", b.pair.String(), err)
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: empty price list", b.pair.String())
	}
	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: malformed price %q", b.pair.String(), prices[0].Price)
	}
	return price, nil
}

// CryptoBalance returns the free base-currency balance of the spot account.
func (b *Binance) CryptoBalance(ctx context.Context) (decimal.Decimal, error) {
	return b.balance(ctx, b.pair.From, &b.lastCrypto)
}

// FiatBalance returns the free quote-currency balance of the spot account.
func (b *Binance) FiatBalance(ctx context.Context) (decimal.Decimal, error) {
	return b.balance(ctx, b.pair.To, &b.lastFiat)
}

func (b *Binance) balance(ctx context.Context, currency string, cache *decimal.Decimal) (decimal.Decimal, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get binance account balance")
	}

	for _, bal := range account.Balances {
		if bal.Asset != currency {
			continue
		}
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "failed to parse %s balance", currency)
		}

		b.mu.Lock()
		*cache = free
		b.mu.Unlock()

		return free, nil
	}
	return decimal.Zero, nil
}

// Buy places a market buy spending fiatToSpend quote currency and returns
// the base quantity the venue reports as executed.
func (b *Binance) Buy(ctx context.Context, fiatToSpend decimal.Decimal) (decimal.Decimal, error) {
	available, err := b.FiatBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if fiatToSpend.GreaterThan(available) {
		return decimal.Decimal{}, errors.Wrapf(ErrInsufficientBalance,
			"have %s %s, need %s", available.String(), b.pair.To, fiatToSpend.String())
	}

	order, err := b.client.NewCreateOrderService().Symbol(b.pair.Symbol()).
		Side(binance.SideTypeBuy).Type(binance.OrderTypeMarket).
		QuoteOrderQty(fiatToSpend.RoundFloor(8).String()).
		NewClientOrderID(newOrderID()).
		Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to create buy order")
	}

	executed, err := decimal.NewFromString(order.ExecutedQuantity)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to parse executed quantity")
	}
	return executed, nil
}

// Sell places a market sell of cryptoToSell base currency and returns the
// quote quantity the venue reports as credited.
func (b *Binance) Sell(ctx context.Context, cryptoToSell decimal.Decimal) (decimal.Decimal, error) {
	available, err := b.CryptoBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if cryptoToSell.GreaterThan(available) {
		return decimal.Decimal{}, errors.Wrapf(ErrInsufficientBalance,
			"have %s %s, need %s", available.String(), b.pair.From, cryptoToSell.String())
	}

	order, err := b.client.NewCreateOrderService().Symbol(b.pair.Symbol()).
		Side(binance.SideTypeSell).Type(binance.OrderTypeMarket).
		Quantity(cryptoToSell.RoundFloor(8).String()).
		NewClientOrderID(newOrderID()).
		Do(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to create sell order")
	}

	received, err := decimal.NewFromString(order.CummulativeQuoteQuantity)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "failed to parse quote quantity")
	}
	return received, nil
}

// CurrentVars serializes fee, pair and the last observed balances.
func (b *Binance) CurrentVars() domain.ExchangeVars {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return domain.ExchangeVars{
		Codename:     b.pair.String(),
		Fee:          b.fee,
		WalletCrypto: b.lastCrypto,
		WalletFiat:   b.lastFiat,
	}
}

// RestoreVars restores fee and pair. Wallet balances are ignored: the venue
// is authoritative and is queried live at engine initialization.
func (b *Binance) RestoreVars(vars domain.ExchangeVars) error {
	if !vars.Fee.IsZero() {
		if vars.Fee.IsNegative() || vars.Fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return errors.Errorf("fee must be a fraction in [0,1), got %s", vars.Fee.String())
		}
		b.fee = vars.Fee
	}
	return nil
}

func newOrderID() string {
	return fmt.Sprintf("%s%s", binanceOrderIDPrefix, uuid.NewString())
}
