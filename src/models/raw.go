package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SourceKind selects the adapter family used to fetch a source.
type SourceKind string

const (
	SourceFeed     SourceKind = "feed"
	SourceAPI      SourceKind = "api"
	SourceDocument SourceKind = "document"
)

// RecordKind tags what a raw or canonical record describes.
type RecordKind string

const (
	RecordMember             RecordKind = "member"
	RecordCommittee          RecordKind = "committee"
	RecordMembership         RecordKind = "membership"
	RecordMembershipSnapshot RecordKind = "membership_snapshot"
	RecordTrade              RecordKind = "trade"
)

// RawRecord is the envelope every adapter emits. Payload holds one of the
// Raw* shapes below; its concrete type must agree with Kind.
type RawRecord struct {
	Source      string     `json:"source"` // Configured source name, used for attribution
	SourceKind  SourceKind `json:"source_kind"`
	Kind        RecordKind `json:"kind"`
	Key         string     `json:"key"` // Stable identity of the raw row within its source
	Ref         string     `json:"ref"` // URL or file the row came from
	CollectedAt time.Time  `json:"collected_at"`
	Payload     any        `json:"payload"`
}

// RecordKey hashes the identifying fields of a raw row into a stable key.
func RecordKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h[:])
}

// RawFeedTrade is one row of a JSON or CSV disclosure snapshot.
type RawFeedTrade struct {
	Senator             string `json:"senator"`
	State               string `json:"state"`
	Party               string `json:"party"`
	Chamber             string `json:"chamber"`
	Owner               string `json:"owner"`
	Ticker              string `json:"ticker"`
	AssetDescription    string `json:"asset_description"`
	Type                string `json:"type"`
	TransactionDate     string `json:"transaction_date"`
	FilingDate          string `json:"filing_date"`
	Amount              string `json:"amount"`
	AmountMin           string `json:"amount_min"`
	AmountMax           string `json:"amount_max"`
	AmountExact         string `json:"amount_exact"`
	Comment             string `json:"comment"`
	PTRLink             string `json:"ptr_link"`
	ExchangeFromTicker  string `json:"exchange_from_ticker"`
	ExchangeFromCompany string `json:"exchange_from_company"`
	ExchangeFromAmount  string `json:"exchange_from_amount"`
	ExchangeRatio       string `json:"exchange_ratio"`
	ExchangeReason      string `json:"exchange_reason"`
}

// RawFeedMember is synthesized by the feed adapter for each distinct filer.
type RawFeedMember struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Party   string `json:"party"`
	Chamber string `json:"chamber"`
}

// RawAPIMember mirrors a member entry of the congress REST API.
type RawAPIMember struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	Suffix     string `json:"suffix"`
	Chamber    string `json:"chamber"`
	State      string `json:"state"`
	Party      string `json:"party"`
	District   string `json:"district"`
	Office     string `json:"office"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	URL        string `json:"url"`
}

// RawAPICommittee mirrors a committee or subcommittee entry.
type RawAPICommittee struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Chamber      string `json:"chamber"`
	ParentID     string `json:"parent_id"`
	Subcommittee bool   `json:"subcommittee"`
	Purpose      string `json:"purpose"`
}

// RawAPIMembership is one current member listed on a committee detail page.
type RawAPIMembership struct {
	CommitteeID      string `json:"committee_id"`
	CommitteeChamber string `json:"committee_chamber"`
	MemberID         string `json:"member_id"`
	Name             string `json:"name"`
	Chamber          string `json:"chamber"`
	State            string `json:"state"`
	Role             string `json:"role"`
	BeginDate        string `json:"begin_date"`
}

// RawMembershipSnapshot closes a complete committee roster. Memberships of
// the committee missing from it are expired.
type RawMembershipSnapshot struct {
	CommitteeID      string             `json:"committee_id"`
	CommitteeChamber string             `json:"committee_chamber"`
	Members          []RawAPIMembership `json:"members"`
}

// RawDisclosureRow is one transaction row scraped from a disclosure document.
type RawDisclosureRow struct {
	MemberName      string `json:"member_name"`
	Chamber         string `json:"chamber"`
	State           string `json:"state"`
	Asset           string `json:"asset"`
	Ticker          string `json:"ticker"`
	Type            string `json:"type"`
	TransactionDate string `json:"transaction_date"`
	FilingDate      string `json:"filing_date"`
	Amount          string `json:"amount"`
	Owner           string `json:"owner"`
	DocumentURL     string `json:"document_url"`
}
