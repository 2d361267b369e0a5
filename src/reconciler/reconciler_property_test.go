package reconciler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/username/capitolwatch/backend/src/database/dbtest"
	"github.com/username/capitolwatch/backend/src/model"
	"github.com/username/capitolwatch/backend/src/models"
)

var propTickers = []string{"AAPL", "MSFT", "NVDA"}

// decodeTrade turns a generated integer into a trade sighting so that
// collisions on the base key are frequent.
func decodeTrade(memberID int64, i, v int) models.CanonicalRecord {
	return tradeRecord(memberID, t0.Add(time.Duration(i)*time.Minute), "prop", func(tr *models.Trade) {
		tr.Ticker = propTickers[v%3]
		if (v/3)%2 == 1 {
			tr.TransactionType = models.TransactionSell
		}
		tr.TransactionDate = tr.TransactionDate.AddDate(0, 0, (v/6)%2)
		switch (v / 12) % 3 {
		case 0:
			withRange(1001, 15000)(tr)
		case 1:
			withExact(int64(1000 + (v/36)%20*1000))(tr)
		}
	})
}

func TestReconcilerIdempotenceProperty(t *testing.T) {
	db := dbtest.New(t)
	r := New(db)
	ctx := context.Background()
	seq := 0

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("second pass over a batch changes nothing and keys stay unique", prop.ForAll(
		func(values []int) bool {
			seq++
			memberID := seedMember(t, r, fmt.Sprintf("member number %d", seq))

			batch := make([]models.CanonicalRecord, len(values))
			for i, v := range values {
				batch[i] = decodeTrade(memberID, i, v)
				if _, err := r.Apply(ctx, batch[i]); err != nil {
					t.Logf("first pass: %v", err)
					return false
				}
			}
			first, err := model.ListTrades(ctx, db, memberID)
			if err != nil {
				return false
			}

			for _, rec := range batch {
				out, err := r.Apply(ctx, rec)
				if err != nil || out != SkippedDuplicate {
					t.Logf("second pass: outcome=%s err=%v", out, err)
					return false
				}
			}
			second, err := model.ListTrades(ctx, db, memberID)
			if err != nil || len(first) != len(second) {
				return false
			}

			keys := make(map[string]bool, len(second))
			for i := range second {
				if first[i].AmountSignature() != second[i].AmountSignature() || first[i].ID != second[i].ID {
					return false
				}
				key := fmt.Sprintf("%s|%s|%s|%s", second[i].Ticker, second[i].TransactionType,
					second[i].TransactionDate.Format(models.DateLayout), second[i].AmountSignature())
				if keys[key] {
					return false
				}
				keys[key] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 719)),
	))

	properties.TestingRun(t)
}
