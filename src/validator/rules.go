package validator

import (
	"regexp"
	"time"

	"github.com/username/capitolwatch/backend/src/models"
)

var tickerRegex = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidTicker reports whether s is 1-5 uppercase ASCII letters.
func ValidTicker(s string) bool { return tickerRegex.MatchString(s) }

// CheckTrade applies the trade rules that need no store access. now bounds
// the transaction date; trades dated after today are rejected.
func CheckTrade(t models.Trade, now time.Time) error {
	if !ValidTicker(t.Ticker) {
		return reject(InvalidTicker, "ticker %q", t.Ticker)
	}
	if !t.TransactionType.Valid() {
		return reject(InvalidTransactionType, "transaction type %q", t.TransactionType)
	}
	if t.TransactionType == models.TransactionExchange {
		switch {
		case t.ExchangeFromTicker == nil || *t.ExchangeFromTicker == "":
			return reject(InvalidExchangeFields, "missing exchange_from_ticker")
		case !ValidTicker(*t.ExchangeFromTicker):
			return reject(InvalidExchangeFields, "exchange_from_ticker %q", *t.ExchangeFromTicker)
		case t.ExchangeFromCompany == nil || *t.ExchangeFromCompany == "":
			return reject(InvalidExchangeFields, "missing exchange_from_company")
		case !t.ExchangeFromAmount.Valid:
			return reject(InvalidExchangeFields, "missing exchange_from_amount")
		}
	}
	if t.HasExact() && t.HasRange() {
		return reject(InvalidAmountOrdering, "both exact amount and range present")
	}
	if t.AmountMin.Valid && t.AmountMax.Valid && t.AmountMin.Decimal.GreaterThan(t.AmountMax.Decimal) {
		return reject(InvalidAmountOrdering, "min %s > max %s", t.AmountMin.Decimal, t.AmountMax.Decimal)
	}
	if t.TransactionDate.IsZero() {
		return reject(InvalidDateOrdering, "missing transaction date")
	}
	if t.FilingDate != nil && t.FilingDate.Before(t.TransactionDate) {
		return reject(InvalidDateOrdering, "filed %s before transaction %s",
			t.FilingDate.Format(models.DateLayout), t.TransactionDate.Format(models.DateLayout))
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if t.TransactionDate.After(today) {
		return reject(FutureTransactionDate, "transaction date %s", t.TransactionDate.Format(models.DateLayout))
	}
	return nil
}
