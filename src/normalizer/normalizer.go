// Package normalizer maps the source-specific raw shapes emitted by the
// adapters onto the canonical entity schema. Every function is pure.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/capitolwatch/backend/src/models"
)

// Normalize converts one raw record into its canonical form or returns a
// *Error describing why it cannot be.
func Normalize(raw models.RawRecord) (models.CanonicalRecord, error) {
	rec := models.CanonicalRecord{
		Kind:        raw.Kind,
		Source:      raw.Source,
		Key:         raw.Key,
		Ref:         raw.Ref,
		CollectedAt: raw.CollectedAt.UTC(),
	}

	var err error
	switch p := raw.Payload.(type) {
	case models.RawFeedMember:
		rec.Member, err = feedMember(p)
	case models.RawAPIMember:
		rec.Member, err = apiMember(p)
	case models.RawAPICommittee:
		rec.Committee, err = apiCommittee(p)
	case models.RawAPIMembership:
		rec.Membership, err = apiMembership(p)
	case models.RawMembershipSnapshot:
		rec.Snapshot, err = membershipSnapshot(p)
	case models.RawFeedTrade:
		rec.Trade, err = feedTrade(p)
	case models.RawDisclosureRow:
		rec.Trade, err = disclosureRow(p)
	default:
		return rec, &Error{Code: MissingField, Field: "payload", Value: fmt.Sprintf("%T", raw.Payload)}
	}
	if err != nil {
		return rec, err
	}

	if rec.Member != nil {
		rec.Member.LastCollectedAt = rec.CollectedAt
	}
	if rec.Committee != nil {
		rec.Committee.Committee.LastCollectedAt = rec.CollectedAt
	}
	if rec.Membership != nil {
		rec.Membership.Membership.LastCollectedAt = rec.CollectedAt
	}
	if rec.Trade != nil {
		rec.Trade.Trade.Source = raw.Source
		rec.Trade.Trade.LastCollectedAt = rec.CollectedAt
	}
	return rec, nil
}

func memberRef(name, chamber, state, externalID string) (models.MemberRef, error) {
	display := DisplayName(name)
	canonical := CanonicalName(name)
	if canonical == "" {
		return models.MemberRef{}, missing("name")
	}
	ch, ok := Chamber(chamber)
	if !ok {
		return models.MemberRef{}, &Error{Code: MissingField, Field: "chamber", Value: chamber}
	}
	return models.MemberRef{
		Name:          display,
		CanonicalName: canonical,
		Chamber:       ch,
		State:         State(state),
		ExternalID:    strings.TrimSpace(externalID),
	}, nil
}

func feedMember(p models.RawFeedMember) (*models.Member, error) {
	ref, err := memberRef(p.Name, p.Chamber, p.State, "")
	if err != nil {
		return nil, err
	}
	if ref.State == "" {
		return nil, &Error{Code: MissingField, Field: "state", Value: p.State}
	}
	return &models.Member{
		Name:          ref.Name,
		CanonicalName: ref.CanonicalName,
		Chamber:       ref.Chamber,
		State:         ref.State,
		Party:         Party(p.Party),
	}, nil
}

func apiMember(p models.RawAPIMember) (*models.Member, error) {
	if strings.TrimSpace(p.LastName) == "" {
		return nil, missing("last_name")
	}
	ref, err := memberRef(JoinName(p.FirstName, p.MiddleName, p.LastName, p.Suffix), p.Chamber, p.State, p.ID)
	if err != nil {
		return nil, err
	}
	if ref.State == "" {
		return nil, &Error{Code: MissingField, Field: "state", Value: p.State}
	}
	m := &models.Member{
		Name:          ref.Name,
		CanonicalName: ref.CanonicalName,
		Chamber:       ref.Chamber,
		State:         ref.State,
		Party:         Party(p.Party),
		Office:        optional(p.Office),
		Phone:         optional(p.Phone),
		Email:         optional(p.Email),
		Website:       optional(p.URL),
		ExternalID:    optional(p.ID),
	}
	if ref.Chamber == models.ChamberHouse {
		m.District = optional(p.District)
	}
	return m, nil
}

func apiCommittee(p models.RawAPICommittee) (*models.CommitteeRecord, error) {
	code := strings.ToUpper(strings.TrimSpace(p.ID))
	if code == "" {
		return nil, missing("id")
	}
	name := DisplayName(p.Name)
	if name == "" {
		return nil, missing("name")
	}
	ch, ok := Chamber(p.Chamber)
	if !ok {
		return nil, &Error{Code: MissingField, Field: "chamber", Value: p.Chamber}
	}
	parent := strings.ToUpper(strings.TrimSpace(p.ParentID))
	return &models.CommitteeRecord{
		Committee: models.Committee{
			Name:         name,
			Code:         code,
			Chamber:      ch,
			Subcommittee: p.Subcommittee || parent != "",
			Description:  optional(p.Purpose),
		},
		ParentCode: parent,
	}, nil
}

func apiMembership(p models.RawAPIMembership) (*models.MembershipRecord, error) {
	code := strings.ToUpper(strings.TrimSpace(p.CommitteeID))
	if code == "" {
		return nil, missing("committee_id")
	}
	committeeChamber, ok := Chamber(p.CommitteeChamber)
	if !ok {
		return nil, &Error{Code: MissingField, Field: "committee_chamber", Value: p.CommitteeChamber}
	}
	memberChamber := p.Chamber
	if memberChamber == "" {
		memberChamber = p.CommitteeChamber
	}
	ref, err := memberRef(p.Name, memberChamber, p.State, p.MemberID)
	if err != nil {
		return nil, err
	}
	start, err := parseOptionalDate("begin_date", p.BeginDate)
	if err != nil {
		return nil, err
	}
	return &models.MembershipRecord{
		Member:           ref,
		CommitteeCode:    code,
		CommitteeChamber: committeeChamber,
		Membership: models.Membership{
			Role:      optional(p.Role),
			Active:    true,
			StartDate: start,
		},
	}, nil
}

func membershipSnapshot(p models.RawMembershipSnapshot) (*models.MembershipSnapshot, error) {
	code := strings.ToUpper(strings.TrimSpace(p.CommitteeID))
	if code == "" {
		return nil, missing("committee_id")
	}
	ch, ok := Chamber(p.CommitteeChamber)
	if !ok {
		return nil, &Error{Code: MissingField, Field: "committee_chamber", Value: p.CommitteeChamber}
	}
	snap := &models.MembershipSnapshot{CommitteeCode: code, CommitteeChamber: ch}
	for _, m := range p.Members {
		memberChamber := m.Chamber
		if memberChamber == "" {
			memberChamber = p.CommitteeChamber
		}
		ref, err := memberRef(m.Name, memberChamber, m.State, m.MemberID)
		if err != nil {
			// A roster with an unreadable entry is not complete.
			return nil, err
		}
		snap.Members = append(snap.Members, ref)
	}
	return snap, nil
}

func feedTrade(p models.RawFeedTrade) (*models.TradeRecord, error) {
	if strings.TrimSpace(p.Senator) == "" {
		return nil, missing("senator")
	}
	ref, err := memberRef(p.Senator, p.Chamber, p.State, "")
	if err != nil {
		return nil, err
	}
	ticker, err := tickerOrExtract(p.Ticker, p.AssetDescription)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Type) == "" {
		return nil, missing("type")
	}
	txDate, err := ParseDate("transaction_date", p.TransactionDate)
	if err != nil {
		return nil, err
	}
	filed, err := parseOptionalDate("filing_date", p.FilingDate)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmountFields(p.AmountExact, p.AmountMin, p.AmountMax, p.Amount)
	if err != nil {
		return nil, err
	}

	t := models.Trade{
		Ticker:          ticker,
		CompanyName:     optional(p.AssetDescription),
		TransactionType: TransactionType(p.Type),
		TransactionDate: txDate,
		FilingDate:      filed,
		AmountExact:     amount.Exact,
		AmountMin:       amount.Min,
		AmountMax:       amount.Max,
		Description:     optional(p.Comment),
		ExchangeRatio:   optional(p.ExchangeRatio),
		ExchangeReason:  optional(p.ExchangeReason),
	}
	if from := strings.TrimSpace(p.ExchangeFromTicker); from != "" {
		ft, err := Ticker(from)
		if err != nil {
			return nil, err
		}
		t.ExchangeFromTicker = &ft
	}
	t.ExchangeFromCompany = optional(p.ExchangeFromCompany)
	if strings.TrimSpace(p.ExchangeFromAmount) != "" {
		v, err := parseMoney(p.ExchangeFromAmount)
		if err != nil {
			return nil, &Error{Code: UnparsableAmount, Field: "exchange_from_amount", Value: p.ExchangeFromAmount}
		}
		t.ExchangeFromAmount = decimal.NewNullDecimal(v)
	}
	return &models.TradeRecord{Member: ref, Trade: t}, nil
}

func disclosureRow(p models.RawDisclosureRow) (*models.TradeRecord, error) {
	if strings.TrimSpace(p.MemberName) == "" {
		return nil, missing("member_name")
	}
	ref, err := memberRef(p.MemberName, p.Chamber, p.State, "")
	if err != nil {
		return nil, err
	}
	ticker, err := tickerOrExtract(p.Ticker, p.Asset)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Type) == "" {
		return nil, missing("type")
	}
	txDate, err := ParseDate("transaction_date", p.TransactionDate)
	if err != nil {
		return nil, err
	}
	filed, err := parseOptionalDate("filing_date", p.FilingDate)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return &models.TradeRecord{
		Member: ref,
		Trade: models.Trade{
			Ticker:          ticker,
			CompanyName:     optional(p.Asset),
			TransactionType: TransactionType(p.Type),
			TransactionDate: txDate,
			FilingDate:      filed,
			AmountExact:     amount.Exact,
			AmountMin:       amount.Min,
			AmountMax:       amount.Max,
		},
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
