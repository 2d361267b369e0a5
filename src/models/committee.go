package models

import "time"

// Committee is a legislative committee or, when Subcommittee is set, one of
// its subcommittees. The tree is never deeper than two levels.
type Committee struct {
	ID              int64     `json:"id,omitempty"`
	Name            string    `json:"name"`
	Code            string    `json:"code"`
	Chamber         Chamber   `json:"chamber"`
	Subcommittee    bool      `json:"subcommittee"`
	ParentID        *int64    `json:"parent_id,omitempty"`
	Description     *string   `json:"description,omitempty"`
	LastCollectedAt time.Time `json:"last_collected_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Membership relates a Member to a Committee.
type Membership struct {
	ID              int64      `json:"id,omitempty"`
	MemberID        int64      `json:"member_id"`
	CommitteeID     int64      `json:"committee_id"`
	Role            *string    `json:"role,omitempty"` // e.g. "Chair", "Ranking Member"
	Active          bool       `json:"active"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	LastCollectedAt time.Time  `json:"last_collected_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
