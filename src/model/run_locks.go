package model

import (
	"context"
	"time"
)

// AcquireRunLock takes the named lock for owner until now+ttl. An expired
// lock held by someone else is taken over. It reports whether the lock is
// now held by owner.
func AcquireRunLock(ctx context.Context, q DBTX, name, owner string, ttl time.Duration, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
	INSERT INTO run_locks (name, owner, expires_at_ms) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at_ms = excluded.expires_at_ms
	WHERE run_locks.expires_at_ms <= ?`,
		name, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseRunLock drops the lock if owner still holds it.
func ReleaseRunLock(ctx context.Context, q DBTX, name, owner string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM run_locks WHERE name = ? AND owner = ?`, name, owner)
	return err
}
