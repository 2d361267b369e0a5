package normalizer

import (
	"strings"

	"github.com/username/capitolwatch/backend/src/models"
)

// Party maps source party vocabularies onto the canonical enumeration.
// Unrecognized values are preserved verbatim.
func Party(s string) models.Party {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), ".")) {
	case "":
		return ""
	case "r", "rep", "republican", "gop":
		return models.PartyRepublican
	case "d", "dem", "democrat", "democratic":
		return models.PartyDemocrat
	case "i", "id", "ind", "independent":
		return models.PartyIndependent
	}
	return models.Party(strings.TrimSpace(s))
}

// Chamber maps chamber vocabularies; ok is false for unrecognized input.
func Chamber(s string) (models.Chamber, bool) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), ".")) {
	case "house", "h", "rep", "representative", "representatives", "house of representatives":
		return models.ChamberHouse, true
	case "senate", "s", "sen", "senator":
		return models.ChamberSenate, true
	case "joint", "j":
		return models.ChamberJoint, true
	}
	return "", false
}

// TransactionType maps disclosure labels to Buy, Sell or Exchange. Labels
// that do not map are returned trimmed so the validator can reject them.
func TransactionType(s string) models.TransactionType {
	label := strings.ToLower(strings.TrimSpace(s))
	switch {
	case label == "p", label == "buy", label == "purchase", strings.HasPrefix(label, "purchase"):
		return models.TransactionBuy
	case label == "s", label == "sell", label == "sale", strings.HasPrefix(label, "sale"), strings.HasPrefix(label, "s ("):
		return models.TransactionSell
	case label == "e", label == "exchange", strings.HasPrefix(label, "exchange"):
		return models.TransactionExchange
	}
	return models.TransactionType(strings.TrimSpace(s))
}

var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR", "california": "CA",
	"colorado": "CO", "connecticut": "CT", "delaware": "DE", "florida": "FL", "georgia": "GA",
	"hawaii": "HI", "idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS", "missouri": "MO",
	"montana": "MT", "nebraska": "NE", "nevada": "NV", "new hampshire": "NH", "new jersey": "NJ",
	"new mexico": "NM", "new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
	"district of columbia": "DC", "puerto rico": "PR", "guam": "GU", "american samoa": "AS",
	"u.s. virgin islands": "VI", "virgin islands": "VI", "northern mariana islands": "MP",
}

var knownCodes = func() map[string]bool {
	m := make(map[string]bool, len(stateCodes))
	for _, code := range stateCodes {
		m[code] = true
	}
	return m
}()

// State returns the two-letter code for a state name or code, or "" when
// the input is empty or unrecognized.
func State(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if up := strings.ToUpper(s); len(up) == 2 && knownCodes[up] {
		return up
	}
	return stateCodes[strings.ToLower(strings.Join(strings.Fields(s), " "))]
}
