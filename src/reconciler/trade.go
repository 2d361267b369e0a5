package reconciler

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/capitolwatch/backend/src/model"
	"github.com/username/capitolwatch/backend/src/models"
)

// amountAction says what a matched sighting does to the stored amount.
type amountAction int

const (
	amountKeep        amountAction = iota // stored amount stays as is
	amountSetExact                        // exact replaces a range or undisclosed amount
	amountSetRange                        // range replaces an undisclosed amount
)

// refinementTarget picks, among trades sharing (member, ticker, type, date),
// the stored row an incoming sighting with a different amount signature
// describes. Candidates are ordered by id, so ties go to the oldest row.
func refinementTarget(candidates []models.Trade, in models.Trade) (*models.Trade, amountAction) {
	switch {
	case in.HasExact():
		for i := range candidates {
			c := &candidates[i]
			if c.HasExact() {
				continue
			}
			if !c.HasRange() || c.RangeContains(in.AmountExact.Decimal) {
				return c, amountSetExact
			}
		}
	case in.HasRange():
		for i := range candidates {
			c := &candidates[i]
			if c.HasExact() && in.RangeContains(c.AmountExact.Decimal) {
				return c, amountKeep
			}
		}
		for i := range candidates {
			if c := &candidates[i]; !c.HasExact() && !c.HasRange() {
				return c, amountSetRange
			}
		}
	default:
		if len(candidates) > 0 {
			return &candidates[0], amountKeep
		}
	}
	return nil, amountKeep
}

func (r *Reconciler) trade(ctx context.Context, tx *sql.Tx, rec models.CanonicalRecord) (Outcome, error) {
	in := rec.Trade.Trade
	in.LastCollectedAt = rec.CollectedAt

	existing, err := found(model.GetTradeByNaturalKey(ctx, tx, in.MemberID, in.Ticker, in.TransactionType, in.TransactionDate, in.AmountSignature()))
	if err != nil {
		return "", fmt.Errorf("lookup trade %s: %w", in.Ticker, err)
	}
	action := amountKeep
	if existing == nil {
		candidates, err := model.ListTradesByBaseKey(ctx, tx, in.MemberID, in.Ticker, in.TransactionType, in.TransactionDate)
		if err != nil {
			return "", fmt.Errorf("list trades %s: %w", in.Ticker, err)
		}
		existing, action = refinementTarget(candidates, in)
	}
	if existing == nil {
		in.ID = 0
		inserted, err := model.InsertTrade(ctx, tx, &in)
		if err != nil {
			return "", fmt.Errorf("insert trade %s: %w", in.Ticker, err)
		}
		if inserted {
			return Inserted, nil
		}
		existing, err = found(model.GetTradeByNaturalKey(ctx, tx, in.MemberID, in.Ticker, in.TransactionType, in.TransactionDate, in.AmountSignature()))
		if err != nil || existing == nil {
			return "", conflictErr("trade "+in.Ticker, err)
		}
	}

	merged := *existing
	m := merger{newer: rec.CollectedAt.After(existing.LastCollectedAt)}
	switch action {
	case amountSetExact:
		merged.AmountExact = in.AmountExact
		merged.AmountMin = decimal.NullDecimal{}
		merged.AmountMax = decimal.NullDecimal{}
		merged.Source = in.Source
		m.changed = true
	case amountSetRange:
		merged.AmountMin = in.AmountMin
		merged.AmountMax = in.AmountMax
		merged.Source = in.Source
		m.changed = true
	}
	m.str(&merged.CompanyName, in.CompanyName)
	m.date(&merged.FilingDate, in.FilingDate)
	m.str(&merged.Description, in.Description)
	m.str(&merged.ExchangeFromTicker, in.ExchangeFromTicker)
	m.str(&merged.ExchangeFromCompany, in.ExchangeFromCompany)
	m.dec(&merged.ExchangeFromAmount, in.ExchangeFromAmount)
	m.str(&merged.ExchangeRatio, in.ExchangeRatio)
	m.str(&merged.ExchangeReason, in.ExchangeReason)
	if merged.Source == "" {
		merged.Source = in.Source
		m.changed = true
	}

	switch {
	case m.changed:
		merged.LastCollectedAt = latest(existing.LastCollectedAt, rec.CollectedAt)
		if err := model.UpdateTrade(ctx, tx, &merged); err != nil {
			return "", fmt.Errorf("update trade %d: %w", merged.ID, err)
		}
		return Updated, nil
	case m.newer:
		if err := model.TouchTrade(ctx, tx, merged.ID, rec.CollectedAt); err != nil {
			return "", err
		}
	}
	return SkippedDuplicate, nil
}
