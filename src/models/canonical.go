package models

import "time"

// CanonicalRecord is a raw record after normalization into the shared
// schema. Exactly one of the entity pointers is set, matching Kind. The
// validator fills in resolved store ids before the record is reconciled.
type CanonicalRecord struct {
	Kind        RecordKind `json:"kind"`
	Source      string     `json:"source"`
	Key         string     `json:"key"`
	Ref         string     `json:"ref"`
	CollectedAt time.Time  `json:"collected_at"`

	Member     *Member             `json:"member,omitempty"`
	Committee  *CommitteeRecord    `json:"committee,omitempty"`
	Membership *MembershipRecord   `json:"membership,omitempty"`
	Snapshot   *MembershipSnapshot `json:"snapshot,omitempty"`
	Trade      *TradeRecord        `json:"trade,omitempty"`
}

// CommitteeRecord carries a committee and the code of its parent, if any.
type CommitteeRecord struct {
	Committee  Committee `json:"committee"`
	ParentCode string    `json:"parent_code,omitempty"`
}

// MembershipRecord is a sighting of a member sitting on a committee.
type MembershipRecord struct {
	Member           MemberRef `json:"member"`
	CommitteeCode    string    `json:"committee_code"`
	CommitteeChamber Chamber   `json:"committee_chamber"`
	Membership       Membership `json:"membership"`
}

// MembershipSnapshot is the complete roster of one committee.
type MembershipSnapshot struct {
	CommitteeCode    string      `json:"committee_code"`
	CommitteeChamber Chamber     `json:"committee_chamber"`
	Members          []MemberRef `json:"members"`
	CommitteeID      int64       `json:"committee_id,omitempty"` // Set by the validator
	MemberIDs        []int64     `json:"member_ids,omitempty"`   // Set by the validator
}

// TradeRecord is a trade together with the unresolved owner reference.
type TradeRecord struct {
	Member MemberRef `json:"member"`
	Trade  Trade     `json:"trade"`
}
