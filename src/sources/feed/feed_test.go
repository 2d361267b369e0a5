package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/sources/fetch"
)

const jsonSnapshot = `[
  {"senator": "Tommy Tuberville", "state": "AL", "party": "Republican", "ticker": "AAPL",
   "asset_description": "Apple Inc.", "type": "Purchase", "transaction_date": "01/10/2024",
   "amount": "$1,001 - $15,000", "owner": "Self"},
  {"senator": "Tommy Tuberville", "state": "AL", "party": "Republican", "ticker": "MSFT",
   "asset_description": "Microsoft Corp", "type": "Sale (Full)", "transaction_date": "01/11/2024",
   "amount": "$15,001 - $50,000", "owner": "Spouse"}
]`

const csvSnapshot = "Senator,State,Ticker,Asset Description,Type,Transaction Date,Amount\n" +
	"Shelley Moore Capito,WV,NVDA,NVIDIA Corp,Purchase,2024-02-01,\"$1,001 - $15,000\"\n"

type memorySeen struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (m *memorySeen) Load(ctx context.Context, source string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{}, len(m.keys))
	for k := range m.keys {
		out[k] = struct{}{}
	}
	return out, nil
}

func (m *memorySeen) Mark(ctx context.Context, source, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = struct{}{}
	return nil
}

func feedConfig(url string) config.SourceConfig {
	return config.SourceConfig{
		Name: "senate-watcher", Kind: models.SourceFeed, URL: url, Chamber: "Senate",
		MaxRetries: 3, BackoffBase: time.Millisecond, BackoffMax: 5 * time.Millisecond, Timeout: 5 * time.Second,
	}
}

func listingServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contents/data":
			fmt.Fprintf(w, `[
			  {"name": "b.csv", "type": "file", "download_url": "%[1]s/raw/b.csv"},
			  {"name": "a.json", "type": "file", "download_url": "%[1]s/raw/a.json"},
			  {"name": "archive", "type": "dir", "download_url": null},
			  {"name": "README.md", "type": "file", "download_url": "%[1]s/raw/README.md"}
			]`, srv.URL)
		case "/raw/a.json":
			w.Write([]byte(jsonSnapshot))
		case "/raw/b.csv":
			w.Write([]byte(csvSnapshot))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, src *Source) ([]models.RawRecord, fetch.Outcome) {
	t.Helper()
	var recs []models.RawRecord
	out := src.Fetch(context.Background(), func(r models.RawRecord) bool {
		recs = append(recs, r)
		return true
	})
	return recs, out
}

func TestFetchListingEmitsMembersThenTrades(t *testing.T) {
	srv := listingServer(t)
	recs, out := collect(t, New(feedConfig(srv.URL+"/contents/data"), nil))

	require.Equal(t, fetch.StatusOk, out.Status, out.Reason)
	require.Len(t, recs, 5)
	assert.Equal(t, out.Count, len(recs))

	assert.Equal(t, models.RecordMember, recs[0].Kind)
	assert.Equal(t, models.RawFeedMember{Name: "Tommy Tuberville", State: "AL", Party: "Republican", Chamber: "Senate"}, recs[0].Payload)
	assert.Equal(t, models.RecordTrade, recs[1].Kind)
	assert.Equal(t, models.RecordTrade, recs[2].Kind)
	assert.Equal(t, models.RecordMember, recs[3].Kind)
	assert.Equal(t, models.RecordTrade, recs[4].Kind)

	trade := recs[4].Payload.(models.RawFeedTrade)
	assert.Equal(t, "Shelley Moore Capito", trade.Senator)
	assert.Equal(t, "NVIDIA Corp", trade.AssetDescription)
	assert.Equal(t, "Senate", trade.Chamber)
	assert.Equal(t, srv.URL+"/raw/b.csv", recs[4].Ref)
	for _, r := range recs {
		assert.Equal(t, "senate-watcher", r.Source)
		assert.NotEmpty(t, r.Key)
		assert.False(t, r.CollectedAt.IsZero())
	}
}

func TestFetchDiffSkipsCommittedRows(t *testing.T) {
	srv := listingServer(t)
	seen := &memorySeen{keys: make(map[string]struct{})}
	cfg := feedConfig(srv.URL + "/contents/data")
	cfg.Diff = true

	src := New(cfg, seen)
	first, out := collect(t, src)
	require.Equal(t, fetch.StatusOk, out.Status)
	require.Len(t, first, 5)
	assert.Empty(t, seen.keys, "nothing is seen until the pipeline commits it")

	// Only the first trade reached the store.
	require.Equal(t, models.RecordTrade, first[1].Kind)
	require.NoError(t, src.Commit(context.Background(), first[0]))
	require.NoError(t, src.Commit(context.Background(), first[1]))
	assert.Len(t, seen.keys, 1)

	second, out := collect(t, New(cfg, seen))
	require.Equal(t, fetch.StatusOk, out.Status)
	require.Len(t, second, 4)
	var keys []string
	for _, r := range second {
		if r.Kind == models.RecordTrade {
			keys = append(keys, r.Key)
		}
	}
	assert.ElementsMatch(t, []string{first[2].Key, first[4].Key}, keys)
}

func TestCommitIgnoredWithoutDiff(t *testing.T) {
	seen := &memorySeen{keys: make(map[string]struct{})}
	src := New(feedConfig("http://unused"), seen)
	require.NoError(t, src.Commit(context.Background(), models.RawRecord{Kind: models.RecordTrade, Key: "k"}))
	assert.Empty(t, seen.keys)
}

func TestListingDetection(t *testing.T) {
	src := New(feedConfig("http://unused"), nil)
	tests := []struct {
		name   string
		body   string
		listed bool
		files  int
	}{
		{"trade rows with type", jsonSnapshot, false, 0},
		{"report object", `{"transactions": []}`, false, 0},
		{"csv", csvSnapshot, false, 0},
		{"contents listing", `[{"name": "a.json", "type": "file", "download_url": "http://x/a.json"},
		  {"name": "old", "type": "dir", "download_url": null}]`, true, 1},
		{"file without download url", `[{"name": "a.json", "type": "file"}]`, false, 0},
		{"empty array", `[]`, true, 0},
		{"no snapshot extensions", `[{"name": "README.md", "type": "file", "download_url": "http://x/README.md"}]`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, listed := src.listing(&fetch.Response{Body: []byte(tt.body)})
			assert.Equal(t, tt.listed, listed)
			assert.Len(t, files, tt.files)
		})
	}
}

func TestFetchSingleSnapshotRowsCarryType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"senator": "Tommy Tuberville", "state": "AL", "ticker": "AAPL",
		  "asset_description": "Apple Inc.", "type": "Purchase", "transaction_date": "01/10/2024",
		  "amount": "$1,001 - $15,000"}]`))
	}))
	defer srv.Close()

	recs, out := collect(t, New(feedConfig(srv.URL+"/all_transactions.json"), nil))
	require.Equal(t, fetch.StatusOk, out.Status, out.Reason)
	require.Len(t, recs, 2)
	assert.Equal(t, models.RecordMember, recs[0].Kind)
	assert.Equal(t, "Purchase", recs[1].Payload.(models.RawFeedTrade).Type)
}

func TestFetchFailsWhenListingHasNoSnapshots(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     `[]`,
		"no data":   `[{"name": "README.md", "type": "file", "download_url": "http://x/README.md"}]`,
		"only dirs": `[{"name": "2023", "type": "dir", "download_url": null}]`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			recs, out := collect(t, New(feedConfig(srv.URL+"/contents/data"), nil))
			assert.Equal(t, fetch.StatusFailed, out.Status)
			assert.Contains(t, out.Reason, "no snapshot files listed")
			assert.Empty(t, recs)
		})
	}
}

func TestFetchSingleSnapshotWithRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(jsonSnapshot))
	}))
	defer srv.Close()

	recs, out := collect(t, New(feedConfig(srv.URL+"/all_transactions.json"), nil))
	require.Equal(t, fetch.StatusOk, out.Status)
	assert.Len(t, recs, 3)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchUnauthorizedFailsWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	recs, out := collect(t, New(feedConfig(srv.URL+"/contents/data"), nil))
	assert.Equal(t, fetch.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "401")
	assert.Empty(t, recs)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchStopsWhenYieldDeclines(t *testing.T) {
	srv := listingServer(t)
	n := 0
	out := New(feedConfig(srv.URL+"/contents/data"), nil).Fetch(context.Background(), func(models.RawRecord) bool {
		n++
		return n < 2
	})
	assert.Equal(t, fetch.StatusOk, out.Status)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, out.Count)
}

func TestDecodeReportShapeFlattensTransactions(t *testing.T) {
	body := []byte(`[{"first_name": "Jane", "last_name": "Doe", "state": "NV", "date_recieved": "02/01/2024",
	  "ptr_link": "https://efd.example/ptr/1",
	  "transactions": [{"ticker": "T", "type": "Purchase", "transaction_date": "01/05/2024", "amount": "$1,001 - $15,000"}]}]`)
	rows, err := decodeJSON(body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0].Senator)
	assert.Equal(t, "NV", rows[0].State)
	assert.Equal(t, "02/01/2024", rows[0].FilingDate)
	assert.Equal(t, "https://efd.example/ptr/1", rows[0].PTRLink)
}

func TestDecodeCSVRejectsUnknownHeader(t *testing.T) {
	_, err := decodeCSV([]byte("foo,bar\n1,2\n"))
	assert.Error(t, err)
}
