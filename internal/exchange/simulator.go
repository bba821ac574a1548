package exchange

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
	"github.com/vadiminshakov/safetrade/internal/pricer"
	"go.uber.org/zap"
)

// SimulatorName is the registry key and snapshot bucket of the simulator.
const SimulatorName = "simulator"

var (
	defaultSimulatorFee  = decimal.NewFromFloat(0.001)
	defaultSimulatorFiat = decimal.NewFromInt(100)
)

// Simulator is a deterministic in-memory venue. Prices come from the
// injected pricer (real market data); trades settle instantly against the
// in-memory wallet and never fail beyond balance checks.
type Simulator struct {
	mu           sync.RWMutex
	pair         domain.Pair
	fee          decimal.Decimal
	walletCrypto decimal.Decimal
	walletFiat   decimal.Decimal
	pricer       pricer.Pricer
	logger       *zap.Logger
}

// NewSimulator creates a simulated connector. With zero-value vars it
// assumes an empty crypto wallet, 100 fiat and a 0.1% fee.
func NewSimulator(pair domain.Pair, p pricer.Pricer, vars domain.ExchangeVars, logger *zap.Logger) (*Simulator, error) {
	if p == nil {
		return nil, errors.New("pricer is required for Simulator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Simulator{
		pair:         pair,
		fee:          defaultSimulatorFee,
		walletCrypto: decimal.Zero,
		walletFiat:   defaultSimulatorFiat,
		pricer:       p,
		logger:       logger,
	}

	// persisted snapshots always carry the pair codename; without it the
	// wallet fields describe nothing and the seed wallet applies
	if vars.Codename == "" {
		if !vars.Fee.IsZero() {
			if vars.Fee.IsNegative() || vars.Fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
				return nil, errors.Errorf("fee must be a fraction in [0,1), got %s", vars.Fee.String())
			}
			s.fee = vars.Fee
		}
		logger.Warn("no persisted simulator vars, assuming empty crypto wallet",
			zap.String("pair", pair.String()),
			zap.String("fee", s.fee.String()),
			zap.String("wallet_fiat", s.walletFiat.String()))
	} else if err := s.RestoreVars(vars); err != nil {
		return nil, err
	}

	return s, nil
}

// Name returns the venue codename.
func (s *Simulator) Name() string { return SimulatorName }

// Fee returns the simulated venue fee.
func (s *Simulator) Fee() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fee
}

// Pair returns the trading pair.
func (s *Simulator) Pair() domain.Pair { return s.pair }

// CurrentPrice fetches the market price from the underlying pricer.
func (s *Simulator) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	price, err := s.pricer.GetPrice(ctx, s.pair)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: %s", s.pair.String(), err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Wrapf(ErrPriceUnavailable, "%s: non-positive price %s", s.pair.String(), price.String())
	}
	return price, nil
}

// CryptoBalance returns the simulated base-currency balance.
func (s *Simulator) CryptoBalance(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletCrypto, nil
}

// FiatBalance returns the simulated quote-currency balance.
func (s *Simulator) FiatBalance(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletFiat, nil
}

// Buy debits fiatToSpend and credits fiatToSpend/price*(1-fee) crypto.
func (s *Simulator) Buy(ctx context.Context, fiatToSpend decimal.Decimal) (decimal.Decimal, error) {
	if fiatToSpend.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Errorf("buy amount must be positive, got %s", fiatToSpend.String())
	}

	price, err := s.CurrentPrice(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "simulated buy")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if fiatToSpend.GreaterThan(s.walletFiat) {
		return decimal.Decimal{}, errors.Wrapf(ErrInsufficientBalance,
			"have %s fiat, need %s", s.walletFiat.String(), fiatToSpend.String())
	}

	received := fiatToSpend.Div(price).Mul(decimal.NewFromInt(1).Sub(s.fee))
	s.walletFiat = s.walletFiat.Sub(fiatToSpend)
	s.walletCrypto = s.walletCrypto.Add(received)

	s.logger.Info("simulated buy executed",
		zap.String("pair", s.pair.String()),
		zap.String("spent_fiat", fiatToSpend.String()),
		zap.String("received_crypto", received.String()),
		zap.String("price", price.String()))

	return received, nil
}

// Sell debits cryptoToSell and credits cryptoToSell*price*(1-fee) fiat.
func (s *Simulator) Sell(ctx context.Context, cryptoToSell decimal.Decimal) (decimal.Decimal, error) {
	if cryptoToSell.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Errorf("sell amount must be positive, got %s", cryptoToSell.String())
	}

	price, err := s.CurrentPrice(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "simulated sell")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cryptoToSell.GreaterThan(s.walletCrypto) {
		return decimal.Decimal{}, errors.Wrapf(ErrInsufficientBalance,
			"have %s crypto, need %s", s.walletCrypto.String(), cryptoToSell.String())
	}

	received := cryptoToSell.Mul(price).Mul(decimal.NewFromInt(1).Sub(s.fee))
	s.walletCrypto = s.walletCrypto.Sub(cryptoToSell)
	s.walletFiat = s.walletFiat.Add(received)

	s.logger.Info("simulated sell executed",
		zap.String("pair", s.pair.String()),
		zap.String("sold_crypto", cryptoToSell.String()),
		zap.String("received_fiat", received.String()),
		zap.String("price", price.String()))

	return received, nil
}

// CurrentVars serializes fee, pair and wallet balances.
func (s *Simulator) CurrentVars() domain.ExchangeVars {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ExchangeVars{
		Codename:     s.pair.String(),
		Fee:          s.fee,
		WalletCrypto: s.walletCrypto,
		WalletFiat:   s.walletFiat,
	}
}

// RestoreVars restores fee, pair and wallet balances from a snapshot.
func (s *Simulator) RestoreVars(vars domain.ExchangeVars) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vars.Codename != "" {
		parts := strings.Split(vars.Codename, "_")
		if len(parts) != 2 {
			return errors.Errorf("invalid pair codename %q", vars.Codename)
		}
		s.pair = domain.Pair{From: parts[0], To: parts[1]}
	}
	if !vars.Fee.IsZero() {
		if vars.Fee.IsNegative() || vars.Fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return errors.Errorf("fee must be a fraction in [0,1), got %s", vars.Fee.String())
		}
		s.fee = vars.Fee
	}
	s.walletCrypto = vars.WalletCrypto
	s.walletFiat = vars.WalletFiat

	return nil
}
