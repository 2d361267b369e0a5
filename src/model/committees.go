package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/username/capitolwatch/backend/src/models"
)

const committeeColumns = `id, name, code, chamber, subcommittee, parent_id, description, last_collected_at, created_at, updated_at`

func scanCommittee(row scanner) (*models.Committee, error) {
	var c models.Committee
	var parentID sql.NullInt64
	var description sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.Chamber, &c.Subcommittee, &parentID, &description,
		&c.LastCollectedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ParentID = int64Ptr(parentID)
	c.Description = stringPtr(description)
	return &c, nil
}

// GetCommitteeByCode looks a committee up by its natural key.
func GetCommitteeByCode(ctx context.Context, q DBTX, code string, chamber models.Chamber) (*models.Committee, error) {
	row := q.QueryRowContext(ctx, `SELECT `+committeeColumns+` FROM committees WHERE code = ? AND chamber = ?`, code, chamber)
	c, err := scanCommittee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	return c, err
}

// InsertCommittee inserts c unless (code, chamber) already exists.
func InsertCommittee(ctx context.Context, q DBTX, c *models.Committee) (inserted bool, err error) {
	now := time.Now().UTC()
	query := `
	INSERT INTO committees (name, code, chamber, subcommittee, parent_id, description, last_collected_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(code, chamber) DO NOTHING
	RETURNING id`
	err = q.QueryRowContext(ctx, query,
		c.Name, c.Code, c.Chamber, c.Subcommittee, nullInt64(c.ParentID), nullString(c.Description),
		c.LastCollectedAt.UTC(), now, now,
	).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return true, nil
}

func UpdateCommittee(ctx context.Context, q DBTX, c *models.Committee) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := q.ExecContext(ctx, `
	UPDATE committees SET name = ?, subcommittee = ?, parent_id = ?, description = ?, last_collected_at = ?, updated_at = ?
	WHERE id = ?`,
		c.Name, c.Subcommittee, nullInt64(c.ParentID), nullString(c.Description), c.LastCollectedAt.UTC(), c.UpdatedAt, c.ID,
	)
	return err
}

func TouchCommittee(ctx context.Context, q DBTX, id int64, collectedAt time.Time) error {
	return touch(ctx, q, "committees", id, collectedAt)
}
