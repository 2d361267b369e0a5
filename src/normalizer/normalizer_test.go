package normalizer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/capitolwatch/backend/src/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		exact    string
		min, max string
	}{
		{in: "$1,001 - $15,000", min: "1001", max: "15000"},
		{in: "$15,001 – $50,000", min: "15001", max: "50000"},
		{in: "1000 to 15000", min: "1000", max: "15000"},
		{in: "Over $50,000,000", min: "50000000"},
		{in: "$50,000,001 +", min: "50000001"},
		{in: "$12,345.67", exact: "12345.67"},
		{in: "$500 - $500", exact: "500"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, err := ParseAmount(tt.in)
			require.NoError(t, err)
			if tt.exact != "" {
				require.True(t, a.Exact.Valid)
				assert.True(t, a.Exact.Decimal.Equal(dec(tt.exact)))
				assert.False(t, a.Min.Valid)
				assert.False(t, a.Max.Valid)
				return
			}
			assert.False(t, a.Exact.Valid)
			if tt.min != "" {
				require.True(t, a.Min.Valid)
				assert.True(t, a.Min.Decimal.Equal(dec(tt.min)))
			}
			if tt.max != "" {
				require.True(t, a.Max.Valid)
				assert.True(t, a.Max.Decimal.Equal(dec(tt.max)))
			} else {
				assert.False(t, a.Max.Valid)
			}
		})
	}
}

func TestParseAmountUndisclosedAndGarbage(t *testing.T) {
	a, err := ParseAmount("--")
	require.NoError(t, err)
	assert.Equal(t, "-", models.AmountSignature(a.Exact, a.Min, a.Max))

	_, err = ParseAmount("about a thousand")
	var nerr *Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, UnparsableAmount, nerr.Code)
}

func TestParseAmountFieldsPrefersStructuredColumns(t *testing.T) {
	a, err := ParseAmountFields("12345", "", "", "$1,001 - $15,000")
	require.NoError(t, err)
	assert.True(t, a.Exact.Decimal.Equal(dec("12345")))

	a, err = ParseAmountFields("", "1000", "15000", "")
	require.NoError(t, err)
	assert.Equal(t, "1000..15000", models.AmountSignature(a.Exact, a.Min, a.Max))

	_, err = ParseAmountFields("", "abc", "", "")
	var nerr *Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "amount_min", nerr.Field)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2023, time.March, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2023-03-07", "03/07/2023", "3/7/2023", "Mar 7, 2023", "March 7, 2023", "07-Mar-2023", "2023-03-07T14:00:00Z"} {
		got, err := ParseDate("transaction_date", in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseDate("transaction_date", "yesterday")
	var nerr *Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, UnparsableDate, nerr.Code)

	_, err = ParseDate("transaction_date", " ")
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, MissingField, nerr.Code)
}

func TestCanonicalName(t *testing.T) {
	tests := map[string]string{
		"Nancy Pelosi":               "nancy pelosi",
		"Hon. Nancy Pelosi":          "nancy pelosi",
		"Pelosi, Nancy":              "nancy pelosi",
		"A. Mitchell Mcconnell, Jr.": "mitchell mcconnell",
		"Thomas H Tuberville":        "thomas tuberville",
		"Sen. Thomas H. Tuberville":  "thomas tuberville",
		"Nydia M. Velázquez":         "nydia velazquez",
		"Ocasio-Cortez, Alexandria":  "alexandria ocasio cortez",
		"  John   SMITH  III ":       "john smith",
		"Beto O'Rourke":              "beto orourke",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalName(in), in)
	}
}

func TestVocabularies(t *testing.T) {
	assert.Equal(t, models.PartyRepublican, Party("R"))
	assert.Equal(t, models.PartyDemocrat, Party("Democratic"))
	assert.Equal(t, models.PartyIndependent, Party("ID"))
	assert.Equal(t, models.Party("Libertarian"), Party("Libertarian"))

	ch, ok := Chamber("Senate")
	assert.True(t, ok)
	assert.Equal(t, models.ChamberSenate, ch)
	_, ok = Chamber("Assembly")
	assert.False(t, ok)

	assert.Equal(t, models.TransactionBuy, TransactionType("Purchase"))
	assert.Equal(t, models.TransactionSell, TransactionType("Sale (Partial)"))
	assert.Equal(t, models.TransactionExchange, TransactionType("Exchange"))
	assert.Equal(t, models.TransactionType("Gift"), TransactionType(" Gift "))

	assert.Equal(t, "CA", State("California"))
	assert.Equal(t, "NY", State("ny"))
	assert.Equal(t, "", State("Atlantis"))
}

func TestTickerCleanupAndExtraction(t *testing.T) {
	got, err := Ticker(" aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got)

	_, err = Ticker("--")
	var nerr *Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, UnknownTicker, nerr.Code)

	assert.Equal(t, "MSFT", TickerFromText("Microsoft Corporation (MSFT)"))
	assert.Equal(t, "NVDA", TickerFromText("NVIDIA CORP NVDA Common Stock"))
	assert.Equal(t, "", TickerFromText("Municipal bond fund"))
}

func TestNormalizeFeedTrade(t *testing.T) {
	collected := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := models.RawRecord{
		Source:      "senate-watcher",
		SourceKind:  models.SourceFeed,
		Kind:        models.RecordTrade,
		Key:         "k1",
		CollectedAt: collected,
		Payload: models.RawFeedTrade{
			Senator:          "Thomas H Tuberville",
			State:            "Alabama",
			Chamber:          "Senate",
			Ticker:           "--",
			AssetDescription: "Apple Inc. (AAPL)",
			Type:             "Purchase",
			TransactionDate:  "01/15/2024",
			FilingDate:       "01/30/2024",
			Amount:           "$1,001 - $15,000",
		},
	}
	rec, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, rec.Trade)
	assert.Equal(t, "thomas tuberville", rec.Trade.Member.CanonicalName)
	assert.Equal(t, "AL", rec.Trade.Member.State)
	assert.Equal(t, "AAPL", rec.Trade.Trade.Ticker)
	assert.Equal(t, models.TransactionBuy, rec.Trade.Trade.TransactionType)
	assert.Equal(t, "1001..15000", rec.Trade.Trade.AmountSignature())
	assert.Equal(t, "senate-watcher", rec.Trade.Trade.Source)
	assert.True(t, collected.Equal(rec.Trade.Trade.LastCollectedAt))
}

func TestNormalizeMissingTicker(t *testing.T) {
	raw := models.RawRecord{Kind: models.RecordTrade, Payload: models.RawFeedTrade{
		Senator: "Jane Doe", Chamber: "Senate", Ticker: "--", AssetDescription: "Municipal bond fund",
		Type: "Sale", TransactionDate: "2024-01-01",
	}}
	_, err := Normalize(raw)
	var nerr *Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, UnknownTicker, nerr.Code)
}

func TestNormalizeAPIMemberAndCommittee(t *testing.T) {
	rec, err := Normalize(models.RawRecord{Kind: models.RecordMember, Payload: models.RawAPIMember{
		ID: "P000197", FirstName: "Nancy", LastName: "Pelosi", Chamber: "house", State: "CA",
		Party: "D", District: "11", Phone: "202-225-4965",
	}})
	require.NoError(t, err)
	require.NotNil(t, rec.Member)
	assert.Equal(t, "nancy pelosi", rec.Member.CanonicalName)
	assert.Equal(t, models.ChamberHouse, rec.Member.Chamber)
	require.NotNil(t, rec.Member.District)
	assert.Equal(t, "11", *rec.Member.District)
	assert.Equal(t, "P000197", *rec.Member.ExternalID)

	rec, err = Normalize(models.RawRecord{Kind: models.RecordCommittee, Payload: models.RawAPICommittee{
		ID: "hsag15", Name: "Subcommittee on Forestry", Chamber: "House", ParentID: "hsag",
	}})
	require.NoError(t, err)
	assert.True(t, rec.Committee.Committee.Subcommittee)
	assert.Equal(t, "HSAG", rec.Committee.ParentCode)
	assert.Equal(t, "HSAG15", rec.Committee.Committee.Code)
}
