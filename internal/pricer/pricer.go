// Package pricer provides market price sources for the simulated connector.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

// Pricer returns the current market price for a trading pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}
