package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/username/capitolwatch/backend/src/models"
)

const tradeColumns = `id, member_id, ticker, company_name, transaction_type, transaction_date, filing_date,
	amount_exact, amount_min, amount_max, exchange_from_ticker, exchange_from_company, exchange_from_amount,
	exchange_ratio, exchange_reason, source, description, last_collected_at, created_at, updated_at`

func scanTrade(row scanner) (*models.Trade, error) {
	var t models.Trade
	var txDate string
	var company, filed, fromTicker, fromCompany, ratio, reason, description sql.NullString
	err := row.Scan(
		&t.ID, &t.MemberID, &t.Ticker, &company, &t.TransactionType, &txDate, &filed,
		&t.AmountExact, &t.AmountMin, &t.AmountMax, &fromTicker, &fromCompany, &t.ExchangeFromAmount,
		&ratio, &reason, &t.Source, &description, &t.LastCollectedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.TransactionDate, err = parseDate(txDate); err != nil {
		return nil, err
	}
	if t.FilingDate, err = datePtr(filed); err != nil {
		return nil, err
	}
	t.CompanyName = stringPtr(company)
	t.ExchangeFromTicker = stringPtr(fromTicker)
	t.ExchangeFromCompany = stringPtr(fromCompany)
	t.ExchangeRatio = stringPtr(ratio)
	t.ExchangeReason = stringPtr(reason)
	t.Description = stringPtr(description)
	return &t, nil
}

// GetTradeByNaturalKey looks a trade up by (member, ticker, type, date, amount signature).
func GetTradeByNaturalKey(ctx context.Context, q DBTX, memberID int64, ticker string, txType models.TransactionType, txDate time.Time, signature string) (*models.Trade, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades
	WHERE member_id = ? AND ticker = ? AND transaction_type = ? AND transaction_date = ? AND amount_signature = ?`,
		memberID, ticker, txType, txDate.Format(models.DateLayout), signature)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	return t, err
}

// ListTradesByBaseKey returns the trades sharing (member, ticker, type,
// date) regardless of amount, lowest id first.
func ListTradesByBaseKey(ctx context.Context, q DBTX, memberID int64, ticker string, txType models.TransactionType, txDate time.Time) ([]models.Trade, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades
	WHERE member_id = ? AND ticker = ? AND transaction_type = ? AND transaction_date = ?
	ORDER BY id`,
		memberID, ticker, txType, txDate.Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// InsertTrade inserts t unless its natural key already exists.
func InsertTrade(ctx context.Context, q DBTX, t *models.Trade) (inserted bool, err error) {
	now := time.Now().UTC()
	query := `
	INSERT INTO trades (member_id, ticker, company_name, transaction_type, transaction_date, filing_date,
		amount_exact, amount_min, amount_max, amount_signature, exchange_from_ticker, exchange_from_company,
		exchange_from_amount, exchange_ratio, exchange_reason, source, description, last_collected_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(member_id, ticker, transaction_type, transaction_date, amount_signature) DO NOTHING
	RETURNING id`
	err = q.QueryRowContext(ctx, query,
		t.MemberID, t.Ticker, nullString(t.CompanyName), t.TransactionType, t.TransactionDate.Format(models.DateLayout),
		dateArg(t.FilingDate), t.AmountExact, t.AmountMin, t.AmountMax, t.AmountSignature(),
		nullString(t.ExchangeFromTicker), nullString(t.ExchangeFromCompany), t.ExchangeFromAmount,
		nullString(t.ExchangeRatio), nullString(t.ExchangeReason), t.Source, nullString(t.Description),
		t.LastCollectedAt.UTC(), now, now,
	).Scan(&t.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return true, nil
}

// UpdateTrade rewrites the trade, including its amount signature.
func UpdateTrade(ctx context.Context, q DBTX, t *models.Trade) error {
	t.UpdatedAt = time.Now().UTC()
	_, err := q.ExecContext(ctx, `
	UPDATE trades SET company_name = ?, filing_date = ?, amount_exact = ?, amount_min = ?, amount_max = ?,
		amount_signature = ?, exchange_from_ticker = ?, exchange_from_company = ?, exchange_from_amount = ?,
		exchange_ratio = ?, exchange_reason = ?, source = ?, description = ?, last_collected_at = ?, updated_at = ?
	WHERE id = ?`,
		nullString(t.CompanyName), dateArg(t.FilingDate), t.AmountExact, t.AmountMin, t.AmountMax,
		t.AmountSignature(), nullString(t.ExchangeFromTicker), nullString(t.ExchangeFromCompany), t.ExchangeFromAmount,
		nullString(t.ExchangeRatio), nullString(t.ExchangeReason), t.Source, nullString(t.Description),
		t.LastCollectedAt.UTC(), t.UpdatedAt, t.ID,
	)
	return err
}

func TouchTrade(ctx context.Context, q DBTX, id int64, collectedAt time.Time) error {
	return touch(ctx, q, "trades", id, collectedAt)
}

// ListTrades returns every trade of a member ordered by id.
func ListTrades(ctx context.Context, q DBTX, memberID int64) ([]models.Trade, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE member_id = ? ORDER BY id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
