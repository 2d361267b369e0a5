package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// CollectionRun is a persisted run summary.
type CollectionRun struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Trigger    string          `json:"trigger"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	DurationMs int64           `json:"duration_ms"`
	Summary    json.RawMessage `json:"summary"`
}

func InsertCollectionRun(ctx context.Context, q DBTX, run CollectionRun) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO collection_runs (id, status, trigger, started_at, finished_at, duration_ms, summary)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Status, run.Trigger, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.DurationMs, string(run.Summary),
	)
	return err
}

func scanRun(row scanner) (*CollectionRun, error) {
	var r CollectionRun
	var summary string
	if err := row.Scan(&r.ID, &r.Status, &r.Trigger, &r.StartedAt, &r.FinishedAt, &r.DurationMs, &summary); err != nil {
		return nil, err
	}
	r.Summary = json.RawMessage(summary)
	return &r, nil
}

// ListCollectionRuns returns the most recent runs first.
func ListCollectionRuns(ctx context.Context, q DBTX, limit int) ([]CollectionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.QueryContext(ctx, `
	SELECT id, status, trigger, started_at, finished_at, duration_ms, summary
	FROM collection_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []CollectionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetLatestCollectionRun returns sql.ErrNoRows before the first run.
func GetLatestCollectionRun(ctx context.Context, q DBTX) (*CollectionRun, error) {
	row := q.QueryRowContext(ctx, `
	SELECT id, status, trigger, started_at, finished_at, duration_ms, summary
	FROM collection_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	return r, err
}
