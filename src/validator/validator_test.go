package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/capitolwatch/backend/src/models"
)

type fakeDirectory struct {
	members    []models.Member
	committees []models.Committee
	err        error
}

func (f *fakeDirectory) Members(_ context.Context, chamber models.Chamber, state string) ([]models.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Member
	for _, m := range f.members {
		if m.Chamber == chamber && (state == "" || m.State == state) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDirectory) Committee(_ context.Context, code string, chamber models.Chamber) (*models.Committee, error) {
	for i := range f.committees {
		if f.committees[i].Code == code && f.committees[i].Chamber == chamber {
			return &f.committees[i], nil
		}
	}
	return nil, f.err
}

var fixedNow = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func strPtr(s string) *string { return &s }

func baseTrade() models.Trade {
	return models.Trade{
		Ticker:          "AAPL",
		TransactionType: models.TransactionBuy,
		TransactionDate: day(2024, 1, 10),
		AmountMin:       decimal.NewNullDecimal(decimal.NewFromInt(1001)),
		AmountMax:       decimal.NewNullDecimal(decimal.NewFromInt(15000)),
	}
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected a rejection, got %v", err)
	return rej.Reason
}

func TestCheckTradeTickers(t *testing.T) {
	for _, ticker := range []string{"abcde", "TOOLONG", "", "BRK.B", "A1"} {
		tr := baseTrade()
		tr.Ticker = ticker
		assert.Equal(t, InvalidTicker, reasonOf(t, CheckTrade(tr, fixedNow)), ticker)
	}
	tr := baseTrade()
	tr.Ticker = "AAPL"
	assert.NoError(t, CheckTrade(tr, fixedNow))
}

func TestCheckTradeFilingBeforeTransaction(t *testing.T) {
	tr := baseTrade()
	filed := day(2024, 1, 9)
	tr.FilingDate = &filed
	assert.Equal(t, InvalidDateOrdering, reasonOf(t, CheckTrade(tr, fixedNow)))

	sameDay := day(2024, 1, 10)
	tr.FilingDate = &sameDay
	assert.NoError(t, CheckTrade(tr, fixedNow))
}

func TestCheckTradeAmounts(t *testing.T) {
	tr := baseTrade()
	tr.AmountMin = decimal.NewNullDecimal(decimal.NewFromInt(15000))
	tr.AmountMax = decimal.NewNullDecimal(decimal.NewFromInt(1001))
	assert.Equal(t, InvalidAmountOrdering, reasonOf(t, CheckTrade(tr, fixedNow)))

	tr = baseTrade()
	tr.AmountExact = decimal.NewNullDecimal(decimal.NewFromInt(5000))
	assert.Equal(t, InvalidAmountOrdering, reasonOf(t, CheckTrade(tr, fixedNow)))

	tr = baseTrade()
	tr.AmountMin, tr.AmountMax = decimal.NullDecimal{}, decimal.NullDecimal{}
	assert.NoError(t, CheckTrade(tr, fixedNow), "undisclosed amount is allowed")
}

func TestCheckTradeExchangeFields(t *testing.T) {
	tr := baseTrade()
	tr.TransactionType = models.TransactionExchange
	assert.Equal(t, InvalidExchangeFields, reasonOf(t, CheckTrade(tr, fixedNow)))

	tr.ExchangeFromTicker = strPtr("MSFT")
	tr.ExchangeFromCompany = strPtr("Microsoft Corp")
	assert.Equal(t, InvalidExchangeFields, reasonOf(t, CheckTrade(tr, fixedNow)))

	tr.ExchangeFromAmount = decimal.NewNullDecimal(decimal.NewFromInt(10000))
	assert.NoError(t, CheckTrade(tr, fixedNow))
}

func TestCheckTradeTypeAndFutureDate(t *testing.T) {
	tr := baseTrade()
	tr.TransactionType = "Gift"
	assert.Equal(t, InvalidTransactionType, reasonOf(t, CheckTrade(tr, fixedNow)))

	tr = baseTrade()
	tr.TransactionDate = day(2024, 6, 2)
	assert.Equal(t, FutureTransactionDate, reasonOf(t, CheckTrade(tr, fixedNow)))

	tr.TransactionDate = day(2024, 6, 1)
	assert.NoError(t, CheckTrade(tr, fixedNow))
}

func tradeRecord(name string, tr models.Trade) models.CanonicalRecord {
	return models.CanonicalRecord{
		Kind: models.RecordTrade,
		Trade: &models.TradeRecord{
			Member: models.MemberRef{Name: name, CanonicalName: name, Chamber: models.ChamberSenate, State: "AL"},
			Trade:  tr,
		},
	}
}

func TestValidateTradeResolvesMemberAndDetectsBatchDuplicates(t *testing.T) {
	dir := &fakeDirectory{members: []models.Member{
		{ID: 42, Name: "Thomas Tuberville", CanonicalName: "thomas tuberville", Chamber: models.ChamberSenate, State: "AL"},
	}}
	v := New(dir, nil).WithClock(func() time.Time { return fixedNow })
	batch := NewBatch()

	out, err := v.Validate(context.Background(), tradeRecord("tommy tuberville", baseTrade()), batch)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Trade.Trade.MemberID)

	_, err = v.Validate(context.Background(), tradeRecord("thomas tuberville", baseTrade()), batch)
	assert.Equal(t, DuplicateWithinBatch, reasonOf(t, err))

	exact := baseTrade()
	exact.AmountMin, exact.AmountMax = decimal.NullDecimal{}, decimal.NullDecimal{}
	exact.AmountExact = decimal.NewNullDecimal(decimal.NewFromInt(12345))
	_, err = v.Validate(context.Background(), tradeRecord("thomas tuberville", exact), batch)
	assert.NoError(t, err, "a refined amount is a different batch key")
}

func TestValidateTradeUnknownMemberIsNotCreated(t *testing.T) {
	v := New(&fakeDirectory{}, nil).WithClock(func() time.Time { return fixedNow })
	_, err := v.Validate(context.Background(), tradeRecord("nobody known", baseTrade()), NewBatch())
	assert.Equal(t, UnknownMember, reasonOf(t, err))
}

func TestValidateTradeAmbiguousMember(t *testing.T) {
	dir := &fakeDirectory{members: []models.Member{
		{ID: 1, CanonicalName: "john smith", Chamber: models.ChamberSenate, State: "AL"},
		{ID: 2, CanonicalName: "james smith", Chamber: models.ChamberSenate, State: "AL"},
	}}
	v := New(dir, nil).WithClock(func() time.Time { return fixedNow })
	_, err := v.Validate(context.Background(), tradeRecord("j smith", baseTrade()), NewBatch())
	assert.Equal(t, UnknownMember, reasonOf(t, err))
}

func TestValidateMemberCreatesOrMatches(t *testing.T) {
	dir := &fakeDirectory{members: []models.Member{
		{ID: 9, CanonicalName: "william cassidy", Chamber: models.ChamberSenate, State: "LA"},
	}}
	v := New(dir, nil)

	rec := models.CanonicalRecord{Kind: models.RecordMember, Member: &models.Member{
		Name: "Bill Cassidy", CanonicalName: "bill cassidy", Chamber: models.ChamberSenate, State: "LA",
	}}
	out, err := v.Validate(context.Background(), rec, NewBatch())
	require.NoError(t, err)
	assert.Equal(t, int64(9), out.Member.ID)
	assert.Equal(t, int64(0), rec.Member.ID, "input record is not mutated")

	rec.Member = &models.Member{Name: "New Senator", CanonicalName: "new senator", Chamber: models.ChamberSenate, State: "LA"}
	out, err = v.Validate(context.Background(), rec, NewBatch())
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Member.ID)
}

func TestValidateCommitteeParent(t *testing.T) {
	dir := &fakeDirectory{committees: []models.Committee{
		{ID: 1, Code: "SSFI", Chamber: models.ChamberSenate},
		{ID: 2, Code: "SSFI10", Chamber: models.ChamberSenate, Subcommittee: true},
	}}
	v := New(dir, nil)
	sub := func(code, parent string) models.CanonicalRecord {
		return models.CanonicalRecord{Kind: models.RecordCommittee, Committee: &models.CommitteeRecord{
			Committee:  models.Committee{Code: code, Chamber: models.ChamberSenate, Subcommittee: true},
			ParentCode: parent,
		}}
	}

	out, err := v.Validate(context.Background(), sub("SSFI12", "SSFI"), NewBatch())
	require.NoError(t, err)
	require.NotNil(t, out.Committee.Committee.ParentID)
	assert.Equal(t, int64(1), *out.Committee.Committee.ParentID)

	_, err = v.Validate(context.Background(), sub("SSFI13", "SSFI10"), NewBatch())
	assert.Equal(t, InvalidCommitteeParent, reasonOf(t, err), "three-level trees are rejected")

	_, err = v.Validate(context.Background(), sub("SSFI14", "NOPE"), NewBatch())
	assert.Equal(t, InvalidCommitteeParent, reasonOf(t, err))
}

func TestValidateSnapshotRequiresEveryMember(t *testing.T) {
	dir := &fakeDirectory{
		members:    []models.Member{{ID: 5, CanonicalName: "jane doe", Chamber: models.ChamberHouse, State: "OH"}},
		committees: []models.Committee{{ID: 3, Code: "HSAG", Chamber: models.ChamberHouse}},
	}
	v := New(dir, nil)
	rec := models.CanonicalRecord{Kind: models.RecordMembershipSnapshot, Snapshot: &models.MembershipSnapshot{
		CommitteeCode: "HSAG", CommitteeChamber: models.ChamberHouse,
		Members: []models.MemberRef{{CanonicalName: "jane doe", Chamber: models.ChamberHouse, State: "OH"}},
	}}
	out, err := v.Validate(context.Background(), rec, NewBatch())
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Snapshot.CommitteeID)
	assert.Equal(t, []int64{5}, out.Snapshot.MemberIDs)

	rec.Snapshot.Members = append(rec.Snapshot.Members, models.MemberRef{CanonicalName: "ghost member", Chamber: models.ChamberHouse, State: "OH"})
	_, err = v.Validate(context.Background(), rec, NewBatch())
	assert.Equal(t, UnknownMember, reasonOf(t, err))
}

func TestDirectoryErrorsAreNotRejections(t *testing.T) {
	boom := errors.New("store closed")
	v := New(&fakeDirectory{err: boom}, nil).WithClock(func() time.Time { return fixedNow })
	_, err := v.Validate(context.Background(), tradeRecord("anyone", baseTrade()), NewBatch())
	assert.ErrorIs(t, err, boom)
	var rej *Rejection
	assert.False(t, errors.As(err, &rej))
}
