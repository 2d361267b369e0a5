package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/username/capitolwatch/backend/src/model"
)

const runLockName = "collection"

// SQLiteRunLock keeps the lock in the run_locks table. A holder that dies
// without releasing loses the lock once its TTL passes.
type SQLiteRunLock struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRunLock(db *sql.DB) *SQLiteRunLock {
	return &SQLiteRunLock{db: db, now: time.Now}
}

func (l *SQLiteRunLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	return model.AcquireRunLock(ctx, l.db, runLockName, owner, ttl, l.now())
}

func (l *SQLiteRunLock) Release(ctx context.Context, owner string) error {
	return model.ReleaseRunLock(ctx, l.db, runLockName, owner)
}
