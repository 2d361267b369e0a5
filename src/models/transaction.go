package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the disclosed direction of a trade.
type TransactionType string

const (
	TransactionBuy      TransactionType = "Buy"
	TransactionSell     TransactionType = "Sell"
	TransactionExchange TransactionType = "Exchange"
)

// Valid reports whether t is one of the enumerated transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionBuy, TransactionSell, TransactionExchange:
		return true
	}
	return false
}

// DateLayout is the calendar representation used for all date-only fields.
const DateLayout = "2006-01-02"

// Trade is a single disclosed transaction owned by a Member.
type Trade struct {
	ID                  int64               `json:"id,omitempty"`
	MemberID            int64               `json:"member_id"`
	Ticker              string              `json:"ticker"`
	CompanyName         *string             `json:"company_name,omitempty"`
	TransactionType     TransactionType     `json:"transaction_type"`
	TransactionDate     time.Time           `json:"transaction_date"`
	FilingDate          *time.Time          `json:"filing_date,omitempty"`
	AmountExact         decimal.NullDecimal `json:"amount_exact"`
	AmountMin           decimal.NullDecimal `json:"amount_min"`
	AmountMax           decimal.NullDecimal `json:"amount_max"`
	ExchangeFromTicker  *string             `json:"exchange_from_ticker,omitempty"` // Exchange only
	ExchangeFromCompany *string             `json:"exchange_from_company,omitempty"`
	ExchangeFromAmount  decimal.NullDecimal `json:"exchange_from_amount"`
	ExchangeRatio       *string             `json:"exchange_ratio,omitempty"`
	ExchangeReason      *string             `json:"exchange_reason,omitempty"`
	Source              string              `json:"source"` // Attribution of the last accepted sighting
	Description         *string             `json:"description,omitempty"`
	LastCollectedAt     time.Time           `json:"last_collected_at"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// HasExact reports whether the trade carries an exact amount.
func (t Trade) HasExact() bool { return t.AmountExact.Valid }

// HasRange reports whether the trade carries any part of a disclosed range.
func (t Trade) HasRange() bool { return t.AmountMin.Valid || t.AmountMax.Valid }

// AmountSignature is the amount part of the trade natural key: the exact
// amount when present, else the (min,max) pair, else "-".
func (t Trade) AmountSignature() string {
	return AmountSignature(t.AmountExact, t.AmountMin, t.AmountMax)
}

// AmountSignature builds the signature from loose amount fields.
func AmountSignature(exact, min, max decimal.NullDecimal) string {
	if exact.Valid {
		return "=" + exact.Decimal.String()
	}
	if !min.Valid && !max.Valid {
		return "-"
	}
	lo, hi := "", ""
	if min.Valid {
		lo = min.Decimal.String()
	}
	if max.Valid {
		hi = max.Decimal.String()
	}
	return lo + ".." + hi
}

// RangeContains reports whether v lies within the trade's disclosed range.
// An open upper bound ("Over $X") contains everything at or above the minimum.
func (t Trade) RangeContains(v decimal.Decimal) bool {
	if !t.HasRange() {
		return false
	}
	if t.AmountMin.Valid && v.LessThan(t.AmountMin.Decimal) {
		return false
	}
	if t.AmountMax.Valid && v.GreaterThan(t.AmountMax.Decimal) {
		return false
	}
	return true
}
