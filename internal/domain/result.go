package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ActionResult is the immutable outcome of one decision cycle for one job.
// It is fully populated even on hold cycles (wallet, price and timestamp are
// always filled; Status is StatusNone and TransactedAmount is nil).
type ActionResult struct {
	JobID        string       `json:"job_id"`
	Exchange     string       `json:"exchange"`
	Action       Action       `json:"action"`
	Status       ActionStatus `json:"action_result"`
	// TransactedAmount is the amount actually credited by the venue:
	// crypto for a buy, fiat for a sell. Nil on hold and on failure.
	TransactedAmount *decimal.Decimal `json:"transacted_amount,omitempty"`
	WalletFiat       decimal.Decimal  `json:"wallet_fiat_amount"`
	WalletCrypto     decimal.Decimal  `json:"wallet_crypto_amount"`
	CurrentPrice     decimal.Decimal  `json:"current_price"`
	Timestamp        time.Time        `json:"timestamp"`
}

// String returns a human-readable string representation.
func (r *ActionResult) String() string {
	amount := "none"
	if r.TransactedAmount != nil {
		amount = r.TransactedAmount.String()
	}
	return fmt.Sprintf("%s on %s: %s (%s) amount: %s price: %s",
		r.JobID, r.Exchange, r.Action.String(), r.Status.String(), amount, r.CurrentPrice.String())
}
