package model

import (
	"context"
	"time"
)

// LoadSeenKeys returns the raw record keys a feed source has already delivered.
func LoadSeenKeys(ctx context.Context, q DBTX, source string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, `SELECT record_key FROM source_seen_keys WHERE source = ?`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		seen[key] = struct{}{}
	}
	return seen, rows.Err()
}

// MarkKeySeen records that a raw record key was processed. Repeats are ignored.
func MarkKeySeen(ctx context.Context, q DBTX, source, key string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO source_seen_keys (source, record_key, first_seen_at) VALUES (?, ?, ?)
	ON CONFLICT(source, record_key) DO NOTHING`, source, key, at.UTC())
	return err
}
