package domain

import "github.com/shopspring/decimal"

// AlgorithmVars is the resumable state of one decision engine.
// LastBoughtPrice equal to zero marks an engine without purchase history.
type AlgorithmVars struct {
	LastBoughtPrice decimal.Decimal `json:"last_bought_price"`
	LastSoldPrice   decimal.Decimal `json:"last_sold_price"`
	WalletCrypto    decimal.Decimal `json:"wallet_crypto_amount"`
	WalletFiat      decimal.Decimal `json:"wallet_fiat_amount"`
}

// ExchangeVars is the resumable state of one exchange connector.
type ExchangeVars struct {
	Codename     string          `json:"crypto_codename"`
	Fee          decimal.Decimal `json:"exchange_fee"`
	WalletCrypto decimal.Decimal `json:"wallet_crypto_amount"`
	WalletFiat   decimal.Decimal `json:"wallet_fiat_amount"`
}

// IsZero reports whether no field is set. Zero seed vars mean the connector
// starts from its own defaults.
func (v ExchangeVars) IsZero() bool {
	return v.Codename == "" && v.Fee.IsZero() && v.WalletCrypto.IsZero() && v.WalletFiat.IsZero()
}

// JobState is the persisted state of one job after a cycle.
type JobState struct {
	AlgorithmVars AlgorithmVars `json:"algorithm_vars"`
	ExchangeVars  ExchangeVars  `json:"exchange_vars"`
}

// Snapshot maps exchange name to job id to that job's post-cycle state.
// A snapshot always supersedes the previous one wholesale.
type Snapshot map[string]map[string]JobState

// Job returns the persisted state for a job id within an exchange bucket.
func (s Snapshot) Job(exchange, jobID string) (JobState, bool) {
	bucket, ok := s[exchange]
	if !ok {
		return JobState{}, false
	}
	state, ok := bucket[jobID]
	return state, ok
}

// SetJob records the state for a job id within an exchange bucket.
func (s Snapshot) SetJob(exchange, jobID string, state JobState) {
	bucket, ok := s[exchange]
	if !ok {
		bucket = make(map[string]JobState)
		s[exchange] = bucket
	}
	bucket[jobID] = state
}
