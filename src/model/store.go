// Package model holds the repository functions that read and write the
// sqlite store. Every function accepts a DBTX so the reconciler can run
// several of them inside one transaction.
package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/capitolwatch/backend/src/models"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(models.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored date %q: %w", s, err)
	}
	return t, nil
}

func datePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// touch bumps last_collected_at without changing any entity field.
func touch(ctx context.Context, q DBTX, table string, id int64, collectedAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET last_collected_at = ? WHERE id = ?`, table)
	_, err := q.ExecContext(ctx, query, collectedAt.UTC(), id)
	return err
}

func count(ctx context.Context, q DBTX, table string) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n)
	return n, err
}

// Counts is a snapshot of entity totals, logged before and after each run.
type Counts struct {
	Members     int64 `json:"members"`
	Committees  int64 `json:"committees"`
	Memberships int64 `json:"memberships"`
	Trades      int64 `json:"trades"`
}

// GetCounts returns the current entity totals.
func GetCounts(ctx context.Context, q DBTX) (Counts, error) {
	var c Counts
	var err error
	if c.Members, err = count(ctx, q, "members"); err != nil {
		return c, err
	}
	if c.Committees, err = count(ctx, q, "committees"); err != nil {
		return c, err
	}
	if c.Memberships, err = count(ctx, q, "committee_memberships"); err != nil {
		return c, err
	}
	c.Trades, err = count(ctx, q, "trades")
	return c, err
}
