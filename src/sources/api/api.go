// Package api pulls members, committees and committee rosters from a
// paginated congress REST API authenticated with an X-API-Key header.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/sources/fetch"
)

const maxPages = 500

type envelope[T any] struct {
	Status  string `json:"status"`
	Errors  []struct {
		Error string `json:"error"`
	} `json:"errors"`
	Results []T `json:"results"`
}

type memberPage struct {
	Chamber    string         `json:"chamber"`
	NumResults int            `json:"num_results"`
	Members    []memberResult `json:"members"`
}

type memberResult struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	Suffix     string `json:"suffix"`
	Party      string `json:"party"`
	State      string `json:"state"`
	District   string `json:"district"`
	Office     string `json:"office"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	URL        string `json:"url"`
}

type committeePage struct {
	Chamber    string            `json:"chamber"`
	Committees []committeeResult `json:"committees"`
}

type committeeResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Chamber       string `json:"chamber"`
	Purpose       string `json:"purpose"`
	Subcommittees []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"subcommittees"`
}

type committeeDetail struct {
	ID             string         `json:"id"`
	Chamber        string         `json:"chamber"`
	CurrentMembers []rosterResult `json:"current_members"`
}

type rosterResult struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Party     string `json:"party"`
	State     string `json:"state"`
	Chamber   string `json:"chamber"`
	Title     string `json:"title"`
	Note      string `json:"note"`
	Side      string `json:"side"`
	BeginDate string `json:"begin_date"`
}

// committeeRef is a committee whose roster still has to be fetched.
type committeeRef struct {
	id, chamber, pathChamber, parentID string
}

// Source is the REST API adapter.
type Source struct {
	cfg    config.SourceConfig
	client *fetch.Client
	now    func() time.Time
}

// New creates an API adapter. The key is read from the configured env var.
func New(cfg config.SourceConfig) *Source {
	var opts []fetch.Option
	if key := cfg.APIKey(); key != "" {
		opts = append(opts, fetch.WithHeader("X-API-Key", key))
	}
	return &Source{cfg: cfg, client: fetch.NewClient(cfg, opts...), now: time.Now}
}

func (s *Source) Name() string            { return s.cfg.Name }
func (s *Source) Kind() models.SourceKind { return models.SourceAPI }

// Fetch yields every member, then parent committees, then subcommittees,
// then each committee's roster followed by its snapshot.
func (s *Source) Fetch(ctx context.Context, yield func(models.RawRecord) bool) fetch.Outcome {
	r := run{src: s, ctx: ctx, yield: yield}
	stopped, err := r.members()
	if err == nil && !stopped {
		stopped, err = r.committees()
	}
	if err == nil && !stopped {
		stopped = r.rosters()
	}
	switch {
	case err != nil:
		return fetch.Outcome{Status: fetch.StatusFailed, Count: r.count, Reason: err.Error(), DocumentErrors: r.docErrs}
	case stopped && ctx.Err() != nil:
		return fetch.Outcome{Status: fetch.StatusFailed, Count: r.count, Reason: ctx.Err().Error(), DocumentErrors: r.docErrs}
	}
	return fetch.Ok(r.count, r.docErrs)
}

type run struct {
	src     *Source
	ctx     context.Context
	yield   func(models.RawRecord) bool
	count   int
	docErrs []fetch.DocumentError
	parents []committeeRef
	subs    []committeeRef
}

func (r *run) emit(kind models.RecordKind, key, ref string, payload any) bool {
	r.count++
	return r.yield(models.RawRecord{
		Source:      r.src.cfg.Name,
		SourceKind:  models.SourceAPI,
		Kind:        kind,
		Key:         key,
		Ref:         ref,
		CollectedAt: r.src.now().UTC(),
		Payload:     payload,
	})
}

func (r *run) members() (bool, error) {
	for _, chamber := range r.src.cfg.Chambers {
		chamber = strings.ToLower(chamber)
		endpoint := r.src.endpoint(chamber, "members.json")
		stopped := false
		err := paginate(r, endpoint, func(ref string, page memberPage) (int, bool) {
			for _, m := range page.Members {
				raw := models.RawAPIMember{
					ID: m.ID, FirstName: m.FirstName, MiddleName: m.MiddleName, LastName: m.LastName,
					Suffix: m.Suffix, Chamber: firstNonEmpty(page.Chamber, chamber), State: m.State,
					Party: m.Party, District: m.District, Office: m.Office, Phone: m.Phone,
					Email: m.Email, URL: m.URL,
				}
				if !r.emit(models.RecordMember, models.RecordKey("member", m.ID), ref, raw) {
					stopped = true
					return len(page.Members), false
				}
			}
			return len(page.Members), true
		})
		if err != nil || stopped {
			return stopped, err
		}
	}
	return false, nil
}

func (r *run) committees() (bool, error) {
	var subs []models.RawAPICommittee
	var subRefs []string
	for _, chamber := range r.src.cfg.Chambers {
		chamber = strings.ToLower(chamber)
		endpoint := r.src.endpoint(chamber, "committees.json")
		stopped := false
		err := paginate(r, endpoint, func(ref string, page committeePage) (int, bool) {
			for _, c := range page.Committees {
				ch := firstNonEmpty(c.Chamber, page.Chamber, chamber)
				raw := models.RawAPICommittee{ID: c.ID, Name: c.Name, Chamber: ch, Purpose: c.Purpose}
				if !r.emit(models.RecordCommittee, models.RecordKey("committee", strings.ToLower(ch), c.ID), ref, raw) {
					stopped = true
					return len(page.Committees), false
				}
				r.parents = append(r.parents, committeeRef{id: c.ID, chamber: ch, pathChamber: chamber})
				for _, sc := range c.Subcommittees {
					subs = append(subs, models.RawAPICommittee{
						ID: sc.ID, Name: sc.Name, Chamber: ch, ParentID: c.ID, Subcommittee: true,
					})
					subRefs = append(subRefs, ref)
					r.subs = append(r.subs, committeeRef{id: sc.ID, chamber: ch, pathChamber: chamber, parentID: c.ID})
				}
			}
			return len(page.Committees), true
		})
		if err != nil || stopped {
			return stopped, err
		}
	}
	for i, sc := range subs {
		if !r.emit(models.RecordCommittee, models.RecordKey("committee", strings.ToLower(sc.Chamber), sc.ID), subRefs[i], sc) {
			return true, nil
		}
	}
	return false, nil
}

// rosters fetches each committee's current members. A roster that cannot be
// fetched completely is a per-document error and produces no snapshot.
func (r *run) rosters() bool {
	log := logger.FromContext(r.ctx)
	for _, c := range append(append([]committeeRef{}, r.parents...), r.subs...) {
		endpoint := r.src.endpoint(c.pathChamber, "committees", c.id+".json")
		if c.parentID != "" {
			endpoint = r.src.endpoint(c.pathChamber, "committees", c.parentID, "subcommittees", c.id+".json")
		}

		var roster []rosterResult
		err := paginate(r, endpoint, func(ref string, page committeeDetail) (int, bool) {
			roster = append(roster, page.CurrentMembers...)
			return len(page.CurrentMembers), true
		})
		if err != nil {
			if r.ctx.Err() != nil {
				return true
			}
			log.Warn("Failed to fetch committee roster", "committee", c.id, "error", err)
			r.docErrs = append(r.docErrs, fetch.DocumentError{Ref: endpoint, Reason: err.Error()})
			continue
		}

		snapshot := models.RawMembershipSnapshot{CommitteeID: c.id, CommitteeChamber: c.chamber}
		for _, m := range roster {
			ms := models.RawAPIMembership{
				CommitteeID: c.id, CommitteeChamber: c.chamber, MemberID: m.ID, Name: m.Name,
				Chamber: m.Chamber, State: m.State, Role: role(m), BeginDate: m.BeginDate,
			}
			if !r.emit(models.RecordMembership, models.RecordKey("membership", c.chamber, c.id, m.ID, m.Name), endpoint, ms) {
				return true
			}
			snapshot.Members = append(snapshot.Members, ms)
		}
		if !r.emit(models.RecordMembershipSnapshot, models.RecordKey("snapshot", c.chamber, c.id), endpoint, snapshot) {
			return true
		}
	}
	return false
}

// paginate walks offset pages of endpoint until a short page. each returns
// the number of items on the page and whether to continue.
func paginate[T any](r *run, endpoint string, each func(ref string, page T) (int, bool)) error {
	size := r.src.cfg.PageSize
	for offset, pages := 0, 0; pages < maxPages; pages++ {
		pageURL := withPage(endpoint, offset, size)
		resp, err := r.src.client.Get(r.ctx, pageURL)
		if err != nil {
			return err
		}
		var env envelope[T]
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			return fmt.Errorf("%w: decode %s: %w", fetch.ErrPermanent, pageURL, err)
		}
		if strings.EqualFold(env.Status, "ERROR") {
			msg := "unknown error"
			if len(env.Errors) > 0 {
				msg = env.Errors[0].Error
			}
			return fmt.Errorf("%w: %s: %s", fetch.ErrPermanent, pageURL, msg)
		}
		if len(env.Results) == 0 {
			return nil
		}
		n, more := each(pageURL, env.Results[0])
		if !more || n == 0 || size <= 0 || n < size {
			return nil
		}
		offset += n
	}
	return fmt.Errorf("%s: more than %d pages", endpoint, maxPages)
}

func (s *Source) endpoint(parts ...string) string {
	base := strings.TrimRight(s.cfg.URL, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return base + "/" + strings.Join(parts, "/")
}

func withPage(endpoint string, offset, size int) string {
	q := url.Values{}
	q.Set("offset", fmt.Sprint(offset))
	if size > 0 {
		q.Set("page_size", fmt.Sprint(size))
	}
	return endpoint + "?" + q.Encode()
}

func role(m rosterResult) string {
	if t := strings.TrimSpace(m.Title); t != "" {
		return t
	}
	if n := strings.TrimSpace(m.Note); n != "" {
		return n
	}
	return "Member"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
