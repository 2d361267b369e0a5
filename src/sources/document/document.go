// Package document scrapes periodic transaction reports published as HTML
// pages linked from a disclosure index.
package document

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/security/validation"
	"github.com/username/capitolwatch/backend/src/sources/fetch"
	"golang.org/x/net/html"
)

// Source is the document scraping adapter.
type Source struct {
	cfg    config.SourceConfig
	client *fetch.Client
	links  *regexp.Regexp
	now    func() time.Time
}

// New creates a document adapter.
func New(cfg config.SourceConfig) (*Source, error) {
	s := &Source{cfg: cfg, client: fetch.NewClient(cfg), now: time.Now}
	if cfg.LinkPattern != "" {
		re, err := regexp.Compile(cfg.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("link_pattern: %w", err)
		}
		s.links = re
	}
	return s, nil
}

func (s *Source) Name() string            { return s.cfg.Name }
func (s *Source) Kind() models.SourceKind { return models.SourceDocument }

// Fetch reads the index, then every linked document in order. A document
// that cannot be fetched or parsed is reported and skipped.
func (s *Source) Fetch(ctx context.Context, yield func(models.RawRecord) bool) fetch.Outcome {
	log := logger.FromContext(ctx)

	index, err := s.client.Get(ctx, s.cfg.URL)
	if err != nil {
		return fetch.Failed(0, err)
	}
	links, err := s.documentLinks(index)
	if err != nil {
		return fetch.Failed(0, err)
	}
	log.Info("Disclosure index read", "documents", len(links))

	count := 0
	var docErrs []fetch.DocumentError
	fail := func(ref string, err error) {
		log.Warn("Skipping disclosure document", "url", ref, "error", err)
		docErrs = append(docErrs, fetch.DocumentError{Ref: ref, Reason: err.Error()})
	}
	for _, link := range links {
		if ctx.Err() != nil {
			return fetch.Outcome{Status: fetch.StatusFailed, Count: count, Reason: ctx.Err().Error(), DocumentErrors: docErrs}
		}
		resp, err := s.client.Get(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			fail(link, err)
			continue
		}
		if _, err := validation.CheckDocumentContent(resp.MediaType(), resp.Body); err != nil {
			fail(link, err)
			continue
		}
		rows, err := parseDisclosure(resp.Body, s.cfg.Chamber)
		if err != nil {
			fail(link, err)
			continue
		}
		now := s.now().UTC()
		for i, row := range rows {
			row.DocumentURL = link
			rec := models.RawRecord{
				Source:      s.cfg.Name,
				SourceKind:  models.SourceDocument,
				Kind:        models.RecordTrade,
				Key:         models.RecordKey(link, strconv.Itoa(i), row.Asset, row.TransactionDate, row.Amount),
				Ref:         link,
				CollectedAt: now,
				Payload:     row,
			}
			count++
			if !yield(rec) {
				if ctx.Err() != nil {
					return fetch.Outcome{Status: fetch.StatusFailed, Count: count, Reason: ctx.Err().Error(), DocumentErrors: docErrs}
				}
				return fetch.Ok(count, docErrs)
			}
		}
	}
	return fetch.Ok(count, docErrs)
}

// documentLinks resolves the index's anchors against its URL, keeps those
// matching the link pattern and caps them at max_documents.
func (s *Source) documentLinks(index *fetch.Response) ([]string, error) {
	base, err := url.Parse(index.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: index url: %w", fetch.ErrPermanent, err)
	}
	doc, err := html.Parse(bytes.NewReader(index.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse index: %w", fetch.ErrPermanent, err)
	}

	seen := make(map[string]bool)
	var links []string
	for _, a := range findAll(doc, func(n *html.Node) bool { return isElement(n, "a") }) {
		href := strings.TrimSpace(attr(a, "href"))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		ref, err := base.Parse(href)
		if err != nil || (ref.Scheme != "http" && ref.Scheme != "https") {
			continue
		}
		ref.Fragment = ""
		link := ref.String()
		if seen[link] || link == index.URL {
			continue
		}
		if s.links != nil && !s.links.MatchString(link) {
			continue
		}
		seen[link] = true
		links = append(links, link)
		if s.cfg.MaxDocuments > 0 && len(links) >= s.cfg.MaxDocuments {
			break
		}
	}
	return links, nil
}
