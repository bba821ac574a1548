package domain

// Action is the decision taken by an engine for one cycle.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

const (
	actionStringHold = "hold"
	actionStringBuy  = "buy_crypto"
	actionStringSell = "sell_crypto"
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionHold:
		return actionStringHold
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "unknown"
	}
}

// ActionStatus classifies the outcome of an executed trade.
type ActionStatus int

const (
	// StatusNone means no trade was attempted (hold cycle).
	StatusNone ActionStatus = iota
	// StatusSuccess means the venue filled exactly the expected amount.
	StatusSuccess
	// StatusPartial means the venue filled a different amount than expected.
	StatusPartial
	// StatusFailure means the venue rejected or could not execute the trade.
	StatusFailure
)

const (
	statusStringNone    = "none"
	statusStringSuccess = "success"
	statusStringPartial = "partial"
	statusStringFailure = "failure"
)

// String returns the string representation of the status.
func (s ActionStatus) String() string {
	switch s {
	case StatusNone:
		return statusStringNone
	case StatusSuccess:
		return statusStringSuccess
	case StatusPartial:
		return statusStringPartial
	case StatusFailure:
		return statusStringFailure
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form.
func (s ActionStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes the status from its string form.
func (s *ActionStatus) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"` + statusStringSuccess + `"`:
		*s = StatusSuccess
	case `"` + statusStringPartial + `"`:
		*s = StatusPartial
	case `"` + statusStringFailure + `"`:
		*s = StatusFailure
	default:
		*s = StatusNone
	}
	return nil
}

// MarshalJSON encodes the action as its string form.
func (a Action) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes the action from its string form.
func (a *Action) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"` + actionStringBuy + `"`:
		*a = ActionBuy
	case `"` + actionStringSell + `"`:
		*a = ActionSell
	default:
		*a = ActionHold
	}
	return nil
}
