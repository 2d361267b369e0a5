package model

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/username/capitolwatch/backend/src/models"
)

const membershipColumns = `id, member_id, committee_id, role, active, start_date, end_date, last_collected_at, created_at, updated_at`

func scanMembership(row scanner) (*models.Membership, error) {
	var ms models.Membership
	var role, start, end sql.NullString
	err := row.Scan(&ms.ID, &ms.MemberID, &ms.CommitteeID, &role, &ms.Active, &start, &end,
		&ms.LastCollectedAt, &ms.CreatedAt, &ms.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ms.Role = stringPtr(role)
	if ms.StartDate, err = datePtr(start); err != nil {
		return nil, err
	}
	if ms.EndDate, err = datePtr(end); err != nil {
		return nil, err
	}
	return &ms, nil
}

// GetMembership looks a membership up by (member, committee).
func GetMembership(ctx context.Context, q DBTX, memberID, committeeID int64) (*models.Membership, error) {
	row := q.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM committee_memberships WHERE member_id = ? AND committee_id = ?`, memberID, committeeID)
	ms, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	return ms, err
}

// ListMemberships returns every membership of a committee, active or not.
func ListMemberships(ctx context.Context, q DBTX, committeeID int64) ([]models.Membership, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+membershipColumns+` FROM committee_memberships WHERE committee_id = ? ORDER BY id`, committeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Membership
	for rows.Next() {
		ms, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ms)
	}
	return out, rows.Err()
}

func InsertMembership(ctx context.Context, q DBTX, ms *models.Membership) (inserted bool, err error) {
	now := time.Now().UTC()
	query := `
	INSERT INTO committee_memberships (member_id, committee_id, role, active, start_date, end_date, last_collected_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(member_id, committee_id) DO NOTHING
	RETURNING id`
	err = q.QueryRowContext(ctx, query,
		ms.MemberID, ms.CommitteeID, nullString(ms.Role), ms.Active, dateArg(ms.StartDate), dateArg(ms.EndDate),
		ms.LastCollectedAt.UTC(), now, now,
	).Scan(&ms.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ms.CreatedAt, ms.UpdatedAt = now, now
	return true, nil
}

func UpdateMembership(ctx context.Context, q DBTX, ms *models.Membership) error {
	ms.UpdatedAt = time.Now().UTC()
	_, err := q.ExecContext(ctx, `
	UPDATE committee_memberships SET role = ?, active = ?, start_date = ?, end_date = ?, last_collected_at = ?, updated_at = ?
	WHERE id = ?`,
		nullString(ms.Role), ms.Active, dateArg(ms.StartDate), dateArg(ms.EndDate), ms.LastCollectedAt.UTC(), ms.UpdatedAt, ms.ID,
	)
	return err
}

func TouchMembership(ctx context.Context, q DBTX, id int64, collectedAt time.Time) error {
	return touch(ctx, q, "committee_memberships", id, collectedAt)
}

// EndMemberships marks the given memberships inactive, ending them on
// asOf. Rows are never deleted.
func EndMemberships(ctx context.Context, q DBTX, ids []int64, asOf time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE committee_memberships SET active = 0, end_date = ?, updated_at = ?
	WHERE active = 1 AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	args := []any{asOf.Format(models.DateLayout), time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
