// Package registry maps configuration names to engine and connector
// constructors. The tables are static: an unknown name in the configuration
// fails at startup instead of resolving classes dynamically.
package registry

import (
	"context"
	"sort"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
	"github.com/vadiminshakov/safetrade/internal/engine"
	"github.com/vadiminshakov/safetrade/internal/exchange"
	"github.com/vadiminshakov/safetrade/internal/pricer"
	"go.uber.org/zap"
)

// Engine is what every algorithm constructor produces: one decision cycle
// plus state serialization for persistence.
type Engine interface {
	ID() string
	Exchange() exchange.Connector
	PerformAction(ctx context.Context) (domain.ActionResult, error)
	CurrentVars() domain.AlgorithmVars
}

// Clients carries the venue clients shared by all connectors of a process.
type Clients struct {
	// Binance serves the live Binance connector. A keyless client is enough
	// for the simulator's public price data.
	Binance *binance.Client
	// Bybit serves the live Bybit connector.
	Bybit *bybit.Client
	// SimulatorPricer overrides the simulator price source (defaults to the
	// Binance public API).
	SimulatorPricer pricer.Pricer
}

type connectorFactory func(clients Clients, pair domain.Pair, fee decimal.Decimal, vars domain.ExchangeVars, logger *zap.Logger) (exchange.Connector, error)

type engineFactory func(ctx context.Context, id string, conn exchange.Connector, vars domain.AlgorithmVars, logger *zap.Logger) (Engine, error)

var connectorFactories = map[string]connectorFactory{
	exchange.SimulatorName: func(clients Clients, pair domain.Pair, fee decimal.Decimal, vars domain.ExchangeVars, logger *zap.Logger) (exchange.Connector, error) {
		p := clients.SimulatorPricer
		if p == nil {
			if clients.Binance == nil {
				return nil, errors.New("simulator needs a pricer or a binance client for public price data")
			}
			p = pricer.NewBinancePricer(clients.Binance)
		}
		if vars.Fee.IsZero() && !fee.IsZero() {
			vars.Fee = fee
		}
		return exchange.NewSimulator(pair, p, vars, logger)
	},
	exchange.BinanceName: func(clients Clients, pair domain.Pair, fee decimal.Decimal, vars domain.ExchangeVars, _ *zap.Logger) (exchange.Connector, error) {
		conn, err := exchange.NewBinance(clients.Binance, pair, fee)
		if err != nil {
			return nil, err
		}
		if err := conn.RestoreVars(vars); err != nil {
			return nil, err
		}
		return conn, nil
	},
	exchange.BybitName: func(clients Clients, pair domain.Pair, fee decimal.Decimal, vars domain.ExchangeVars, _ *zap.Logger) (exchange.Connector, error) {
		conn, err := exchange.NewBybit(clients.Bybit, pair, fee)
		if err != nil {
			return nil, err
		}
		if err := conn.RestoreVars(vars); err != nil {
			return nil, err
		}
		return conn, nil
	},
}

var engineFactories = map[string]engineFactory{
	engine.Name: func(ctx context.Context, id string, conn exchange.Connector, vars domain.AlgorithmVars, logger *zap.Logger) (Engine, error) {
		return engine.NewSafeTrade(ctx, id, conn, vars, logger)
	},
}

// KnownExchange reports whether a connector is registered under name.
func KnownExchange(name string) bool {
	_, ok := connectorFactories[name]
	return ok
}

// KnownAlgorithm reports whether an algorithm is registered under name.
func KnownAlgorithm(name string) bool {
	_, ok := engineFactories[name]
	return ok
}

// NewConnector constructs the connector registered under name.
func NewConnector(name string, clients Clients, pair domain.Pair, fee decimal.Decimal, vars domain.ExchangeVars, logger *zap.Logger) (exchange.Connector, error) {
	factory, ok := connectorFactories[name]
	if !ok {
		return nil, errors.Errorf("unsupported exchange %q, supported: %s", name, strings.Join(SupportedExchanges(), ", "))
	}
	return factory(clients, pair, fee, vars, logger)
}

// NewEngine constructs the algorithm registered under name.
func NewEngine(ctx context.Context, name, id string, conn exchange.Connector, vars domain.AlgorithmVars, logger *zap.Logger) (Engine, error) {
	factory, ok := engineFactories[name]
	if !ok {
		return nil, errors.Errorf("unsupported algorithm %q, supported: %s", name, strings.Join(SupportedAlgorithms(), ", "))
	}
	return factory(ctx, id, conn, vars, logger)
}

// SupportedExchanges lists the registered exchange names, sorted.
func SupportedExchanges() []string {
	names := make([]string, 0, len(connectorFactories))
	for name := range connectorFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportedAlgorithms lists the registered algorithm names, sorted.
func SupportedAlgorithms() []string {
	names := make([]string, 0, len(engineFactories))
	for name := range engineFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
