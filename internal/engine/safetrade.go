// Package engine implements the hysteresis buy/sell decision engine.
package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
	"github.com/vadiminshakov/safetrade/internal/exchange"
	"go.uber.org/zap"
)

// Name is the registry key of the SafeTrade engine.
const Name = "safetrade"

// fillTolerance is the relative divergence between the expected and the
// actual fill below which a trade still counts as a full success. Venue
// fills routinely differ from the pre-fee-lock estimate by dust, which is
// not a partial fill in any meaningful sense.
var fillTolerance = decimal.New(1, -8)

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
)

// SafeTrade trades a single wallet pair with a fee-hysteresis band: it
// sells the whole crypto wallet once the price clears the last purchase
// plus both trade fees, and buys with the whole fiat wallet once the price
// drops below the last sale minus both fees. An engine without purchase
// history never sells and is buy-eligible on its very first cycle.
//
// A SafeTrade instance is owned by exactly one job and is not safe for
// concurrent use.
type SafeTrade struct {
	id       string
	exchange exchange.Connector
	logger   *zap.Logger

	lastBoughtPrice decimal.Decimal
	lastSoldPrice   decimal.Decimal
	walletCrypto    decimal.Decimal
	walletFiat      decimal.Decimal

	// hasHistory is false until the first successful purchase. It replaces
	// the persisted zero last_bought_price sentinel in memory: while false,
	// the sell branch is disabled and the buy branch is primed.
	hasHistory bool
}

// NewSafeTrade constructs an engine from persisted or default vars.
// Wallet amounts are always taken from the live connector; persisted wallet
// values that disagree produce a discrepancy warning and are discarded.
func NewSafeTrade(ctx context.Context, id string, conn exchange.Connector, vars domain.AlgorithmVars, logger *zap.Logger) (*SafeTrade, error) {
	if id == "" {
		return nil, errors.New("job id is required")
	}
	if conn == nil {
		return nil, errors.New("exchange connector is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &SafeTrade{
		id:       id,
		exchange: conn,
		logger:   logger.With(zap.String("job", id), zap.String("exchange", conn.Name())),
	}

	if err := e.restoreVars(ctx, vars); err != nil {
		return nil, errors.Wrapf(err, "restore vars for job %s", id)
	}
	return e, nil
}

// ID returns the stable job identifier of this engine instance.
func (e *SafeTrade) ID() string { return e.id }

// Exchange returns the connector this engine trades through.
func (e *SafeTrade) Exchange() exchange.Connector { return e.exchange }

func (e *SafeTrade) restoreVars(ctx context.Context, vars domain.AlgorithmVars) error {
	e.lastBoughtPrice = vars.LastBoughtPrice
	e.lastSoldPrice = vars.LastSoldPrice
	e.hasHistory = !vars.LastBoughtPrice.IsZero()
	if !e.hasHistory {
		e.lastSoldPrice = decimal.Zero
		e.logger.Warn("no purchase history, forcing a purchase on next eligible cycle")
	}

	liveCrypto, err := e.exchange.CryptoBalance(ctx)
	if err != nil {
		return errors.Wrap(err, "read crypto balance")
	}
	liveFiat, err := e.exchange.FiatBalance(ctx)
	if err != nil {
		return errors.Wrap(err, "read fiat balance")
	}

	// reconcile persisted wallet values against the live connector: the
	// live value always wins
	if !vars.WalletCrypto.IsZero() && !vars.WalletCrypto.Equal(liveCrypto) {
		e.logger.Warn("persisted wallet amount disagrees with exchange, using exchange value",
			zap.String("field", "wallet_crypto_amount"),
			zap.String("persisted", vars.WalletCrypto.String()),
			zap.String("live", liveCrypto.String()))
	}
	if !vars.WalletFiat.IsZero() && !vars.WalletFiat.Equal(liveFiat) {
		e.logger.Warn("persisted wallet amount disagrees with exchange, using exchange value",
			zap.String("field", "wallet_fiat_amount"),
			zap.String("persisted", vars.WalletFiat.String()),
			zap.String("live", liveFiat.String()))
	}
	e.walletCrypto = liveCrypto
	e.walletFiat = liveFiat

	return nil
}

// CurrentVars serializes the engine state for persistence. An engine
// without purchase history keeps a zero last bought price, which restores
// the same state on the next start.
func (e *SafeTrade) CurrentVars() domain.AlgorithmVars {
	vars := domain.AlgorithmVars{
		LastSoldPrice: e.lastSoldPrice,
		WalletCrypto:  e.walletCrypto,
		WalletFiat:    e.walletFiat,
	}
	if e.hasHistory {
		vars.LastBoughtPrice = e.lastBoughtPrice
	}
	return vars
}

// PerformAction evaluates exactly one of sell, buy or hold for the current
// price and executes it. The returned result is fully populated even on
// hold. A price lookup failure fails the cycle for this job only; trade
// failures are reported in the result with reference prices unchanged.
func (e *SafeTrade) PerformAction(ctx context.Context) (domain.ActionResult, error) {
	currentPrice, err := e.exchange.CurrentPrice(ctx)
	if err != nil {
		return domain.ActionResult{}, errors.Wrap(err, "get current price")
	}
	e.logger.Debug("current price", zap.String("price", currentPrice.String()))

	fee := e.exchange.Fee()
	feeBand := fee.Mul(two)

	result := domain.ActionResult{
		JobID:     e.id,
		Exchange:  e.exchange.Name(),
		Action:    domain.ActionHold,
		Status:    domain.StatusNone,
		Timestamp: time.Now(),
	}

	switch {
	case e.hasHistory &&
		currentPrice.Mul(one.Sub(feeBand)).GreaterThan(e.lastBoughtPrice) &&
		!e.walletCrypto.IsZero():
		// the position clears both the purchase and the upcoming sale fee:
		// sell the entire crypto wallet
		expectedFiat := currentPrice.Mul(e.walletCrypto).Mul(one.Sub(fee))
		result.Action = domain.ActionSell
		result.Status, result.TransactedAmount = e.performCryptoSale(ctx, e.walletCrypto, expectedFiat)
		if result.Status != domain.StatusFailure {
			e.lastSoldPrice = currentPrice
		}

	case (!e.hasHistory || currentPrice.Mul(one.Add(feeBand)).LessThan(e.lastSoldPrice)) &&
		!e.walletFiat.IsZero():
		// spend the entire fiat wallet
		expectedCrypto := e.walletFiat.Div(currentPrice).Mul(one.Sub(fee))
		result.Action = domain.ActionBuy
		result.Status, result.TransactedAmount = e.performCryptoPurchase(ctx, e.walletFiat, expectedCrypto)
		if result.Status != domain.StatusFailure {
			e.lastBoughtPrice = currentPrice
			e.hasHistory = true
		}

	default:
		e.logger.Debug("performing no action")
	}

	result.WalletFiat = e.walletFiat
	result.WalletCrypto = e.walletCrypto
	result.CurrentPrice = currentPrice

	return result, nil
}

// performCryptoSale sells cryptoToSell and classifies the fill against the
// pre-computed expectation.
func (e *SafeTrade) performCryptoSale(ctx context.Context, cryptoToSell, expectedFiat decimal.Decimal) (domain.ActionStatus, *decimal.Decimal) {
	receivedFiat, err := e.exchange.Sell(ctx, cryptoToSell)
	defer e.refreshWallets(ctx)

	if err != nil {
		e.logger.Error("failed crypto sale",
			zap.String("requested_crypto", cryptoToSell.String()),
			zap.String("expected_fiat", expectedFiat.String()),
			zap.Error(err))
		return domain.StatusFailure, nil
	}

	if !withinTolerance(expectedFiat, receivedFiat) {
		e.logger.Warn("partial crypto sale",
			zap.String("expected_fiat", expectedFiat.String()),
			zap.String("received_fiat", receivedFiat.String()))
		return domain.StatusPartial, &receivedFiat
	}

	e.logger.Info("successful crypto sale",
		zap.String("expected_fiat", expectedFiat.String()),
		zap.String("received_fiat", receivedFiat.String()))
	return domain.StatusSuccess, &receivedFiat
}

// performCryptoPurchase spends fiatToSpend and classifies the fill against
// the pre-computed expectation.
func (e *SafeTrade) performCryptoPurchase(ctx context.Context, fiatToSpend, expectedCrypto decimal.Decimal) (domain.ActionStatus, *decimal.Decimal) {
	boughtCrypto, err := e.exchange.Buy(ctx, fiatToSpend)
	defer e.refreshWallets(ctx)

	if err != nil {
		e.logger.Error("failed crypto purchase",
			zap.String("requested_fiat", fiatToSpend.String()),
			zap.String("expected_crypto", expectedCrypto.String()),
			zap.Error(err))
		return domain.StatusFailure, nil
	}

	if !withinTolerance(expectedCrypto, boughtCrypto) {
		e.logger.Warn("partial crypto purchase",
			zap.String("expected_crypto", expectedCrypto.String()),
			zap.String("bought_crypto", boughtCrypto.String()))
		return domain.StatusPartial, &boughtCrypto
	}

	e.logger.Info("successful crypto purchase",
		zap.String("expected_crypto", expectedCrypto.String()),
		zap.String("bought_crypto", boughtCrypto.String()))
	return domain.StatusSuccess, &boughtCrypto
}

// refreshWallets re-reads both balances from the connector after a trade
// attempt. A failed refresh keeps the previous values and is reconciled on
// the next attempt or restart.
func (e *SafeTrade) refreshWallets(ctx context.Context) {
	if crypto, err := e.exchange.CryptoBalance(ctx); err != nil {
		e.logger.Error("failed to refresh crypto balance", zap.Error(err))
	} else {
		e.walletCrypto = crypto
	}
	if fiat, err := e.exchange.FiatBalance(ctx); err != nil {
		e.logger.Error("failed to refresh fiat balance", zap.Error(err))
	} else {
		e.walletFiat = fiat
	}
}

// withinTolerance reports whether actual matches expected up to the
// relative fill tolerance.
func withinTolerance(expected, actual decimal.Decimal) bool {
	if expected.IsZero() {
		return actual.IsZero()
	}
	diff := expected.Sub(actual).Abs()
	return diff.LessThanOrEqual(expected.Abs().Mul(fillTolerance))
}
