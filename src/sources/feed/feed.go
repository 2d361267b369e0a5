// Package feed reads bulk disclosure snapshots published as JSON or CSV
// files, either from a GitHub contents listing or a single snapshot URL.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/sources/fetch"
	"golang.org/x/oauth2"
)

// SeenKeys remembers which raw keys a source already delivered so a diff
// feed only yields new rows.
type SeenKeys interface {
	Load(ctx context.Context, source string) (map[string]struct{}, error)
	Mark(ctx context.Context, source, key string) error
}

// indexEntry is one item of a GitHub contents listing.
type indexEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// Source is the bulk feed adapter.
type Source struct {
	cfg    config.SourceConfig
	client *fetch.Client
	seen   SeenKeys
	now    func() time.Time
}

// New creates a feed adapter. seen may be nil when the source does not diff.
func New(cfg config.SourceConfig, seen SeenKeys) *Source {
	var opts []fetch.Option
	if token := cfg.Token(); token != "" {
		opts = append(opts, fetch.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
	}
	return &Source{
		cfg:    cfg,
		client: fetch.NewClient(cfg, opts...),
		seen:   seen,
		now:    time.Now,
	}
}

func (s *Source) Name() string            { return s.cfg.Name }
func (s *Source) Kind() models.SourceKind { return models.SourceFeed }

// Fetch yields a member record for each newly seen filer followed by the
// trades of every snapshot file, oldest file first.
func (s *Source) Fetch(ctx context.Context, yield func(models.RawRecord) bool) fetch.Outcome {
	log := logger.FromContext(ctx)

	var seen map[string]struct{}
	if s.cfg.Diff && s.seen != nil {
		var err error
		if seen, err = s.seen.Load(ctx, s.cfg.Name); err != nil {
			return fetch.Failed(0, fmt.Errorf("load seen keys: %w", err))
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
	}

	index, err := s.client.Get(ctx, s.cfg.URL)
	if err != nil {
		return fetch.Failed(0, err)
	}
	files, listed := s.listing(index)
	if !listed {
		files = []indexEntry{{Name: path.Base(index.URL), DownloadURL: index.URL}}
	} else if len(files) == 0 {
		return fetch.Failed(0, fmt.Errorf("no snapshot files listed at %s", index.URL))
	}

	e := emitter{src: s, ctx: ctx, yield: yield, seen: seen, members: make(map[string]bool)}
	var docErrs []fetch.DocumentError
	failed := 0
	for _, f := range files {
		resp := index
		if listed {
			if resp, err = s.client.Get(ctx, f.DownloadURL); err != nil {
				if ctx.Err() != nil {
					return fetch.Failed(e.count, ctx.Err())
				}
				log.Warn("Failed to fetch feed file", "file", f.Name, "error", err)
				docErrs = append(docErrs, fetch.DocumentError{Ref: f.DownloadURL, Reason: err.Error()})
				failed++
				continue
			}
		}
		rows, err := decodeRows(f.Name, s.cfg.Format, resp)
		if err != nil {
			log.Warn("Failed to decode feed file", "file", f.Name, "error", err)
			docErrs = append(docErrs, fetch.DocumentError{Ref: f.DownloadURL, Reason: err.Error()})
			failed++
			continue
		}
		if !e.rows(f.DownloadURL, rows) {
			if ctx.Err() != nil {
				return fetch.Failed(e.count, ctx.Err())
			}
			return fetch.Ok(e.count, docErrs)
		}
	}
	if failed > 0 && failed == len(files) {
		return fetch.Outcome{Status: fetch.StatusFailed, Count: e.count,
			Reason: "no feed file could be read: " + docErrs[len(docErrs)-1].Reason, DocumentErrors: docErrs}
	}
	return fetch.Ok(e.count, docErrs)
}

// listing reports whether the index is a contents listing and returns its
// snapshot files sorted by name. Every entry must be a file with a
// download_url or a dir; an array of trade rows decodes into indexEntry too
// and is told apart here.
func (s *Source) listing(resp *fetch.Response) ([]indexEntry, bool) {
	var entries []indexEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, false
	}
	var files []indexEntry
	for _, e := range entries {
		switch {
		case e.Type == "dir":
			continue
		case e.Type == "file" && e.DownloadURL != "":
		default:
			return nil, false
		}
		ext := strings.ToLower(path.Ext(e.Name))
		if ext == ".json" || ext == ".csv" {
			files = append(files, e)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, true
}

// emitter turns decoded rows into raw records, applying the seen-key diff.
type emitter struct {
	src     *Source
	ctx     context.Context
	yield   func(models.RawRecord) bool
	seen    map[string]struct{}
	members map[string]bool
	count   int
}

func (e *emitter) rows(ref string, rows []models.RawFeedTrade) bool {
	cfg := e.src.cfg
	for _, row := range rows {
		if e.ctx.Err() != nil {
			return false
		}
		if strings.TrimSpace(row.Chamber) == "" {
			row.Chamber = cfg.Chamber
		}
		key := tradeKey(row)
		if _, ok := e.seen[key]; ok {
			continue
		}
		now := e.src.now().UTC()

		if name, state := strings.TrimSpace(row.Senator), strings.TrimSpace(row.State); name != "" && state != "" {
			memberKey := models.RecordKey("member", strings.ToLower(name), strings.ToUpper(state))
			if !e.members[memberKey] {
				e.members[memberKey] = true
				rec := models.RawRecord{
					Source: cfg.Name, SourceKind: models.SourceFeed, Kind: models.RecordMember,
					Key: memberKey, Ref: ref, CollectedAt: now,
					Payload: models.RawFeedMember{Name: name, State: state, Party: row.Party, Chamber: row.Chamber},
				}
				e.count++
				if !e.yield(rec) {
					return false
				}
			}
		}

		rec := models.RawRecord{
			Source: cfg.Name, SourceKind: models.SourceFeed, Kind: models.RecordTrade,
			Key: key, Ref: ref, CollectedAt: now, Payload: row,
		}
		e.count++
		if !e.yield(rec) {
			return false
		}
	}
	return true
}

// Commit marks a trade key as seen. It is called only for records that
// reached the store, so a rejected row is offered again on the next run.
func (s *Source) Commit(ctx context.Context, rec models.RawRecord) error {
	if !s.cfg.Diff || s.seen == nil || rec.Kind != models.RecordTrade {
		return nil
	}
	return s.seen.Mark(ctx, s.cfg.Name, rec.Key)
}

// tradeKey identifies a feed row by the fields a republished snapshot keeps
// stable.
func tradeKey(r models.RawFeedTrade) string {
	return models.RecordKey(
		strings.ToLower(strings.TrimSpace(r.Senator)),
		strings.ToUpper(strings.TrimSpace(r.Ticker)),
		strings.ToLower(strings.TrimSpace(r.AssetDescription)),
		strings.ToLower(strings.TrimSpace(r.Type)),
		strings.TrimSpace(r.TransactionDate),
		strings.TrimSpace(r.Amount), strings.TrimSpace(r.AmountMin),
		strings.TrimSpace(r.AmountMax), strings.TrimSpace(r.AmountExact),
		strings.ToLower(strings.TrimSpace(r.Owner)),
		strings.TrimSpace(r.PTRLink),
	)
}
