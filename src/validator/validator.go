// Package validator rejects canonical records that violate domain rules and
// resolves their member and committee references against the store.
package validator

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/username/capitolwatch/backend/src/matching"
	"github.com/username/capitolwatch/backend/src/models"
)

// Directory is the read-only view of known members and committees the
// validator resolves references against.
type Directory interface {
	// Members lists members of a chamber; an empty state means every state.
	Members(ctx context.Context, chamber models.Chamber, state string) ([]models.Member, error)
	// Committee returns nil without error when the committee is unknown.
	Committee(ctx context.Context, code string, chamber models.Chamber) (*models.Committee, error)
}

// Batch remembers the natural keys accepted so far in one source pass.
type Batch struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewBatch() *Batch {
	return &Batch{seen: make(map[string]struct{})}
}

// claim reports whether key was not yet seen, recording it.
func (b *Batch) claim(key string) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.seen[key]; dup {
		return false
	}
	b.seen[key] = struct{}{}
	return true
}

type Validator struct {
	dir     Directory
	matcher *matching.Matcher
	now     func() time.Time
}

// New returns a Validator. A nil matcher uses matching.New().
func New(dir Directory, matcher *matching.Matcher) *Validator {
	if matcher == nil {
		matcher = matching.New()
	}
	return &Validator{dir: dir, matcher: matcher, now: time.Now}
}

// WithClock overrides the clock used for the future-date rule.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate accepts rec, returning a copy with store ids resolved, or a
// *Rejection. Other errors come from the Directory.
func (v *Validator) Validate(ctx context.Context, rec models.CanonicalRecord, batch *Batch) (models.CanonicalRecord, error) {
	switch rec.Kind {
	case models.RecordMember:
		return v.member(ctx, rec, batch)
	case models.RecordCommittee:
		return v.committee(ctx, rec, batch)
	case models.RecordMembership:
		return v.membership(ctx, rec, batch)
	case models.RecordMembershipSnapshot:
		return v.snapshot(ctx, rec, batch)
	case models.RecordTrade:
		return v.trade(ctx, rec, batch)
	}
	return rec, reject(UnknownMember, "unsupported record kind %q", rec.Kind)
}

// ResolveMember finds the stored member ref points at. It never creates one.
func (v *Validator) ResolveMember(ctx context.Context, ref models.MemberRef) (*models.Member, error) {
	candidates, err := v.dir.Members(ctx, ref.Chamber, ref.State)
	if err != nil {
		return nil, err
	}
	res := v.matcher.Match(ref, candidates)
	switch res.Status {
	case matching.Matched:
		return res.Member, nil
	case matching.Ambiguous:
		return nil, reject(UnknownMember, "ambiguous match for %q (%s %s)", ref.Name, ref.Chamber, ref.State)
	}
	return nil, reject(UnknownMember, "no member matches %q (%s %s)", ref.Name, ref.Chamber, ref.State)
}

func (v *Validator) member(ctx context.Context, rec models.CanonicalRecord, batch *Batch) (models.CanonicalRecord, error) {
	m := *rec.Member
	if m.Chamber != models.ChamberHouse && m.Chamber != models.ChamberSenate {
		return rec, reject(UnknownMember, "member chamber %q", m.Chamber)
	}
	candidates, err := v.dir.Members(ctx, m.Chamber, m.State)
	if err != nil {
		return rec, err
	}
	res := v.matcher.Match(m.Ref(), candidates)
	switch res.Status {
	case matching.Ambiguous:
		return rec, reject(UnknownMember, "ambiguous match for %q (%s %s)", m.Name, m.Chamber, m.State)
	case matching.Matched:
		m.ID = res.Member.ID
	default:
		m.ID = 0
	}

	key := "member|" + string(m.Chamber) + "|" + m.State + "|" + m.CanonicalName
	if m.ID != 0 {
		key = "member|" + strconv.FormatInt(m.ID, 10)
	}
	if !batch.claim(key) {
		return rec, reject(DuplicateWithinBatch, "member %q", m.Name)
	}
	rec.Member = &m
	return rec, nil
}

func (v *Validator) committee(ctx context.Context, rec models.CanonicalRecord, batch *Batch) (models.CanonicalRecord, error) {
	cr := *rec.Committee
	c := cr.Committee
	if c.Subcommittee {
		if cr.ParentCode == "" {
			return rec, reject(InvalidCommitteeParent, "subcommittee %s has no parent", c.Code)
		}
		if cr.ParentCode == c.Code {
			return rec, reject(InvalidCommitteeParent, "subcommittee %s is its own parent", c.Code)
		}
		parent, err := v.dir.Committee(ctx, cr.ParentCode, c.Chamber)
		if err != nil {
			return rec, err
		}
		if parent == nil {
			return rec, reject(InvalidCommitteeParent, "parent %s of %s not found", cr.ParentCode, c.Code)
		}
		if parent.Subcommittee {
			return rec, reject(InvalidCommitteeParent, "parent %s of %s is itself a subcommittee", cr.ParentCode, c.Code)
		}
		c.ParentID = &parent.ID
	} else {
		c.ParentID = nil
	}
	if !batch.claim("committee|" + string(c.Chamber) + "|" + c.Code) {
		return rec, reject(DuplicateWithinBatch, "committee %s", c.Code)
	}
	cr.Committee = c
	rec.Committee = &cr
	return rec, nil
}

func (v *Validator) membership(ctx context.Context, rec models.CanonicalRecord, batch *Batch) (models.CanonicalRecord, error) {
	mr := *rec.Membership
	committee, err := v.dir.Committee(ctx, mr.CommitteeCode, mr.CommitteeChamber)
	if err != nil {
		return rec, err
	}
	if committee == nil {
		return rec, reject(UnknownCommittee, "committee %s (%s)", mr.CommitteeCode, mr.CommitteeChamber)
	}
	member, err := v.ResolveMember(ctx, mr.Member)
	if err != nil {
		return rec, err
	}
	mr.Membership.MemberID = member.ID
	mr.Membership.CommitteeID = committee.ID
	if !batch.claim("membership|" + strconv.FormatInt(member.ID, 10) + "|" + strconv.FormatInt(committee.ID, 10)) {
		return rec, reject(DuplicateWithinBatch, "membership %q on %s", mr.Member.Name, mr.CommitteeCode)
	}
	rec.Membership = &mr
	return rec, nil
}

func (v *Validator) snapshot(ctx context.Context, rec models.CanonicalRecord, batch *Batch) (models.CanonicalRecord, error) {
	snap := *rec.Snapshot
	committee, err := v.dir.Committee(ctx, snap.CommitteeCode, snap.CommitteeChamber)
	if err != nil {
		return rec, err
	}
	if committee == nil {
		return rec, reject(UnknownCommittee, "committee %s (%s)", snap.CommitteeCode, snap.CommitteeChamber)
	}
	snap.CommitteeID = committee.ID
	snap.MemberIDs = make([]int64, 0, len(snap.Members))
	for _, ref := range snap.Members {
		// An unresolved roster entry could hide a membership that must stay
		// active, so the whole snapshot is rejected.
		member, err := v.ResolveMember(ctx, ref)
		if err != nil {
			return rec, err
		}
		snap.MemberIDs = append(snap.MemberIDs, member.ID)
	}
	if !batch.claim("snapshot|" + strconv.FormatInt(committee.ID, 10)) {
		return rec, reject(DuplicateWithinBatch, "snapshot of %s", snap.CommitteeCode)
	}
	rec.Snapshot = &snap
	return rec, nil
}

func (v *Validator) trade(ctx context.Context, rec models.CanonicalRecord, batch *Batch) (models.CanonicalRecord, error) {
	tr := *rec.Trade
	if err := CheckTrade(tr.Trade, v.now()); err != nil {
		return rec, err
	}
	member, err := v.ResolveMember(ctx, tr.Member)
	if err != nil {
		return rec, err
	}
	tr.Trade.MemberID = member.ID

	key := strings.Join([]string{
		"trade",
		strconv.FormatInt(member.ID, 10),
		tr.Trade.Ticker,
		string(tr.Trade.TransactionType),
		tr.Trade.TransactionDate.Format(models.DateLayout),
		tr.Trade.AmountSignature(),
	}, "|")
	if !batch.claim(key) {
		return rec, reject(DuplicateWithinBatch, "trade %s %s %s", tr.Trade.Ticker, tr.Trade.TransactionType, tr.Trade.TransactionDate.Format(models.DateLayout))
	}
	rec.Trade = &tr
	return rec, nil
}
