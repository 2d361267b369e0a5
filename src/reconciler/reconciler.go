// Package reconciler upserts validated canonical records into the store,
// keeping at most one row per natural key.
package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/capitolwatch/backend/src/model"
	"github.com/username/capitolwatch/backend/src/models"
)

// Outcome is what an upsert did to the store.
type Outcome string

const (
	Inserted         Outcome = "inserted"
	Updated          Outcome = "updated"
	SkippedDuplicate Outcome = "skipped-duplicate"
)

var ErrUnsupportedRecord = errors.New("unsupported record kind")

// Reconciler applies records to the store, one transaction per record.
type Reconciler struct {
	db *sql.DB
}

func New(db *sql.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Apply upserts rec atomically. Applying the same record twice leaves the
// store unchanged the second time and reports SkippedDuplicate.
func (r *Reconciler) Apply(ctx context.Context, rec models.CanonicalRecord) (Outcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var outcome Outcome
	switch {
	case rec.Kind == models.RecordMember && rec.Member != nil:
		outcome, err = r.member(ctx, tx, rec)
	case rec.Kind == models.RecordCommittee && rec.Committee != nil:
		outcome, err = r.committee(ctx, tx, rec)
	case rec.Kind == models.RecordMembership && rec.Membership != nil:
		outcome, err = r.membership(ctx, tx, rec)
	case rec.Kind == models.RecordMembershipSnapshot && rec.Snapshot != nil:
		outcome, err = r.snapshot(ctx, tx, rec)
	case rec.Kind == models.RecordTrade && rec.Trade != nil:
		outcome, err = r.trade(ctx, tx, rec)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRecord, rec.Kind)
	}
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit upsert: %w", err)
	}
	return outcome, nil
}

func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// conflictErr reports a row that could be neither inserted nor found again.
func conflictErr(what string, err error) error {
	if err == nil {
		err = sql.ErrNoRows
	}
	return fmt.Errorf("reread %s after insert conflict: %w", what, err)
}

func (r *Reconciler) member(ctx context.Context, tx *sql.Tx, rec models.CanonicalRecord) (Outcome, error) {
	in := *rec.Member
	in.LastCollectedAt = rec.CollectedAt
	lookup := func() (*models.Member, error) {
		if in.ID != 0 {
			if m, err := found(model.GetMemberByID(ctx, tx, in.ID)); m != nil || err != nil {
				return m, err
			}
		}
		if m, err := found(model.GetMemberByNaturalKey(ctx, tx, in.CanonicalName, in.Chamber, in.State)); m != nil || err != nil {
			return m, err
		}
		if in.ExternalID != nil {
			return found(model.GetMemberByExternalID(ctx, tx, *in.ExternalID))
		}
		return nil, nil
	}

	existing, err := lookup()
	if err != nil {
		return "", fmt.Errorf("lookup member %q: %w", in.Name, err)
	}
	if existing == nil {
		in.ID = 0
		inserted, err := model.InsertMember(ctx, tx, &in)
		if err != nil {
			return "", fmt.Errorf("insert member %q: %w", in.Name, err)
		}
		if inserted {
			return Inserted, nil
		}
		// Lost a race with another writer; merge into its row.
		if existing, err = lookup(); err != nil || existing == nil {
			return "", conflictErr("member "+in.Name, err)
		}
	}

	merged := *existing
	m := merger{newer: rec.CollectedAt.After(existing.LastCollectedAt)}
	m.text(&merged.Name, in.Name)
	party := string(merged.Party)
	m.text(&party, string(in.Party))
	merged.Party = models.Party(party)
	m.str(&merged.District, in.District)
	m.str(&merged.Office, in.Office)
	m.str(&merged.Phone, in.Phone)
	m.str(&merged.Email, in.Email)
	m.str(&merged.Website, in.Website)
	m.str(&merged.Bio, in.Bio)
	m.fill(&merged.ExternalID, in.ExternalID)

	switch {
	case m.changed:
		merged.LastCollectedAt = latest(existing.LastCollectedAt, rec.CollectedAt)
		if err := model.UpdateMember(ctx, tx, &merged); err != nil {
			return "", fmt.Errorf("update member %d: %w", merged.ID, err)
		}
		return Updated, nil
	case m.newer:
		if err := model.TouchMember(ctx, tx, merged.ID, rec.CollectedAt); err != nil {
			return "", err
		}
	}
	return SkippedDuplicate, nil
}

func (r *Reconciler) committee(ctx context.Context, tx *sql.Tx, rec models.CanonicalRecord) (Outcome, error) {
	in := rec.Committee.Committee
	in.LastCollectedAt = rec.CollectedAt
	existing, err := found(model.GetCommitteeByCode(ctx, tx, in.Code, in.Chamber))
	if err != nil {
		return "", fmt.Errorf("lookup committee %s: %w", in.Code, err)
	}
	if existing == nil {
		inserted, err := model.InsertCommittee(ctx, tx, &in)
		if err != nil {
			return "", fmt.Errorf("insert committee %s: %w", in.Code, err)
		}
		if inserted {
			return Inserted, nil
		}
		if existing, err = found(model.GetCommitteeByCode(ctx, tx, in.Code, in.Chamber)); err != nil || existing == nil {
			return "", conflictErr("committee "+in.Code, err)
		}
	}

	merged := *existing
	m := merger{newer: rec.CollectedAt.After(existing.LastCollectedAt)}
	m.text(&merged.Name, in.Name)
	m.str(&merged.Description, in.Description)
	if in.Subcommittee != merged.Subcommittee && m.newer {
		merged.Subcommittee = in.Subcommittee
		merged.ParentID = in.ParentID
		m.changed = true
	} else if in.Subcommittee == merged.Subcommittee {
		m.id(&merged.ParentID, in.ParentID)
	}

	switch {
	case m.changed:
		merged.LastCollectedAt = latest(existing.LastCollectedAt, rec.CollectedAt)
		if err := model.UpdateCommittee(ctx, tx, &merged); err != nil {
			return "", fmt.Errorf("update committee %d: %w", merged.ID, err)
		}
		return Updated, nil
	case m.newer:
		if err := model.TouchCommittee(ctx, tx, merged.ID, rec.CollectedAt); err != nil {
			return "", err
		}
	}
	return SkippedDuplicate, nil
}

func (r *Reconciler) membership(ctx context.Context, tx *sql.Tx, rec models.CanonicalRecord) (Outcome, error) {
	in := rec.Membership.Membership
	in.Active = true
	in.EndDate = nil
	in.LastCollectedAt = rec.CollectedAt
	existing, err := found(model.GetMembership(ctx, tx, in.MemberID, in.CommitteeID))
	if err != nil {
		return "", fmt.Errorf("lookup membership: %w", err)
	}
	if existing == nil {
		inserted, err := model.InsertMembership(ctx, tx, &in)
		if err != nil {
			return "", fmt.Errorf("insert membership: %w", err)
		}
		if inserted {
			return Inserted, nil
		}
		if existing, err = found(model.GetMembership(ctx, tx, in.MemberID, in.CommitteeID)); err != nil || existing == nil {
			return "", conflictErr("membership", err)
		}
	}

	merged := *existing
	m := merger{newer: rec.CollectedAt.After(existing.LastCollectedAt)}
	m.str(&merged.Role, in.Role)
	m.date(&merged.StartDate, in.StartDate)
	if !merged.Active && m.newer {
		merged.Active = true
		merged.EndDate = nil
		m.changed = true
	}

	switch {
	case m.changed:
		merged.LastCollectedAt = latest(existing.LastCollectedAt, rec.CollectedAt)
		if err := model.UpdateMembership(ctx, tx, &merged); err != nil {
			return "", fmt.Errorf("update membership %d: %w", merged.ID, err)
		}
		return Updated, nil
	case m.newer:
		if err := model.TouchMembership(ctx, tx, merged.ID, rec.CollectedAt); err != nil {
			return "", err
		}
	}
	return SkippedDuplicate, nil
}

// snapshot soft-expires the active memberships of a committee that a
// complete roster no longer lists. Memberships sighted after the roster was
// collected are left alone.
func (r *Reconciler) snapshot(ctx context.Context, tx *sql.Tx, rec models.CanonicalRecord) (Outcome, error) {
	snap := rec.Snapshot
	keep := make(map[int64]bool, len(snap.MemberIDs))
	for _, id := range snap.MemberIDs {
		keep[id] = true
	}
	current, err := model.ListMemberships(ctx, tx, snap.CommitteeID)
	if err != nil {
		return "", fmt.Errorf("list memberships of committee %d: %w", snap.CommitteeID, err)
	}
	var stale []int64
	for _, ms := range current {
		if ms.Active && !keep[ms.MemberID] && !ms.LastCollectedAt.After(rec.CollectedAt) {
			stale = append(stale, ms.ID)
		}
	}
	n, err := model.EndMemberships(ctx, tx, stale, rec.CollectedAt)
	if err != nil {
		return "", fmt.Errorf("expire memberships of committee %d: %w", snap.CommitteeID, err)
	}
	if n > 0 {
		return Updated, nil
	}
	return SkippedDuplicate, nil
}
