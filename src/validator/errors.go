package validator

import "fmt"

// Reason names a domain rule a record violated.
type Reason string

const (
	InvalidTicker          Reason = "InvalidTicker"
	InvalidAmountOrdering  Reason = "InvalidAmountOrdering"
	InvalidDateOrdering    Reason = "InvalidDateOrdering"
	UnknownMember          Reason = "UnknownMember"
	DuplicateWithinBatch   Reason = "DuplicateWithinBatch"
	InvalidExchangeFields  Reason = "InvalidExchangeFields"
	InvalidTransactionType Reason = "InvalidTransactionType"
	FutureTransactionDate  Reason = "FutureTransactionDate"
	InvalidCommitteeParent Reason = "InvalidCommitteeParent"
	UnknownCommittee       Reason = "UnknownCommittee"
)

// Rejection is returned as a value when a record must not reach the store.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
