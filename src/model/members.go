package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/username/capitolwatch/backend/src/models"
)

const memberColumns = `id, name, canonical_name, chamber, state, party, district, office, phone, email,
	website, bio, external_id, last_collected_at, created_at, updated_at`

func scanMember(row scanner) (*models.Member, error) {
	var m models.Member
	var district, office, phone, email, website, bio, externalID sql.NullString
	err := row.Scan(
		&m.ID, &m.Name, &m.CanonicalName, &m.Chamber, &m.State, &m.Party,
		&district, &office, &phone, &email, &website, &bio, &externalID,
		&m.LastCollectedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.District = stringPtr(district)
	m.Office = stringPtr(office)
	m.Phone = stringPtr(phone)
	m.Email = stringPtr(email)
	m.Website = stringPtr(website)
	m.Bio = stringPtr(bio)
	m.ExternalID = stringPtr(externalID)
	return &m, nil
}

func getMember(ctx context.Context, q DBTX, where string, args ...any) (*models.Member, error) {
	row := q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE `+where, args...)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return m, nil
}

// GetMemberByNaturalKey looks a member up by (canonical name, chamber, state).
func GetMemberByNaturalKey(ctx context.Context, q DBTX, canonicalName string, chamber models.Chamber, state string) (*models.Member, error) {
	return getMember(ctx, q, `canonical_name = ? AND chamber = ? AND state = ?`, canonicalName, chamber, state)
}

// GetMemberByID returns sql.ErrNoRows when the member does not exist.
func GetMemberByID(ctx context.Context, q DBTX, id int64) (*models.Member, error) {
	return getMember(ctx, q, `id = ?`, id)
}

func GetMemberByExternalID(ctx context.Context, q DBTX, externalID string) (*models.Member, error) {
	return getMember(ctx, q, `external_id = ?`, externalID)
}

// ListMembers returns the members of a chamber, optionally restricted to one
// state, ordered by id.
func ListMembers(ctx context.Context, q DBTX, chamber models.Chamber, state string) ([]models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE chamber = ?`
	args := []any{chamber}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// InsertMember inserts m unless a member with the same natural key or
// external id already exists, in which case inserted is false.
func InsertMember(ctx context.Context, q DBTX, m *models.Member) (inserted bool, err error) {
	now := time.Now().UTC()
	query := `
	INSERT INTO members (name, canonical_name, chamber, state, party, district, office, phone, email,
		website, bio, external_id, last_collected_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING
	RETURNING id`
	err = q.QueryRowContext(ctx, query,
		m.Name, m.CanonicalName, m.Chamber, m.State, m.Party,
		nullString(m.District), nullString(m.Office), nullString(m.Phone), nullString(m.Email),
		nullString(m.Website), nullString(m.Bio), nullString(m.ExternalID),
		m.LastCollectedAt.UTC(), now, now,
	).Scan(&m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m.CreatedAt, m.UpdatedAt = now, now
	return true, nil
}

// UpdateMember writes every mutable field of m. The natural key is not changed.
func UpdateMember(ctx context.Context, q DBTX, m *models.Member) error {
	m.UpdatedAt = time.Now().UTC()
	query := `
	UPDATE members SET name = ?, party = ?, district = ?, office = ?, phone = ?, email = ?,
		website = ?, bio = ?, external_id = ?, last_collected_at = ?, updated_at = ?
	WHERE id = ?`
	_, err := q.ExecContext(ctx, query,
		m.Name, m.Party, nullString(m.District), nullString(m.Office), nullString(m.Phone),
		nullString(m.Email), nullString(m.Website), nullString(m.Bio), nullString(m.ExternalID),
		m.LastCollectedAt.UTC(), m.UpdatedAt, m.ID,
	)
	return err
}

// TouchMember records a newer sighting of an unchanged member.
func TouchMember(ctx context.Context, q DBTX, id int64, collectedAt time.Time) error {
	return touch(ctx, q, "members", id, collectedAt)
}
