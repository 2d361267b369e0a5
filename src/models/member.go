package models

import "time"

// Chamber identifies the legislative body a member or committee belongs to.
type Chamber string

const (
	ChamberHouse  Chamber = "House"
	ChamberSenate Chamber = "Senate"
	ChamberJoint  Chamber = "Joint"
)

// Party is the member's party affiliation. Unknown vocabularies are kept verbatim.
type Party string

const (
	PartyRepublican  Party = "Republican"
	PartyDemocrat    Party = "Democrat"
	PartyIndependent Party = "Independent"
)

// Member represents a legislator.
type Member struct {
	ID              int64     `json:"id,omitempty"`
	Name            string    `json:"name"`           // Display name as last reported by a source
	CanonicalName   string    `json:"canonical_name"` // Matching form, e.g. "nancy pelosi"
	Chamber         Chamber   `json:"chamber"`
	State           string    `json:"state"` // Two-letter postal code
	Party           Party     `json:"party,omitempty"`
	District        *string   `json:"district,omitempty"` // House only
	Office          *string   `json:"office,omitempty"`
	Phone           *string   `json:"phone,omitempty"`
	Email           *string   `json:"email,omitempty"`
	Website         *string   `json:"website,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	ExternalID      *string   `json:"external_id,omitempty"` // Source-issued identifier (bioguide id)
	LastCollectedAt time.Time `json:"last_collected_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MemberRef is how non-member records point at a legislator before the
// reference has been resolved against the store.
type MemberRef struct {
	Name          string  `json:"name"`
	CanonicalName string  `json:"canonical_name"`
	Chamber       Chamber `json:"chamber"`
	State         string  `json:"state,omitempty"` // Empty when the source does not report it
	ExternalID    string  `json:"external_id,omitempty"`
}

// Ref returns the reference other records would use to point at m.
func (m Member) Ref() MemberRef {
	ref := MemberRef{Name: m.Name, CanonicalName: m.CanonicalName, Chamber: m.Chamber, State: m.State}
	if m.ExternalID != nil {
		ref.ExternalID = *m.ExternalID
	}
	return ref
}
