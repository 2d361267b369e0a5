// Package matching resolves member references from noisy sources against
// the members already known to the store.
package matching

import (
	"strings"
	"unicode"

	"github.com/username/capitolwatch/backend/src/models"
)

// Status is the outcome of a match attempt.
type Status int

const (
	NoMatch Status = iota
	Matched
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "matched"
	case Ambiguous:
		return "ambiguous"
	}
	return "no_match"
}

// Result carries the matched member when Status is Matched.
type Result struct {
	Status Status
	Member *models.Member
	Score  float64
	Exact  bool
}

// DefaultThreshold is the minimum similarity for a fuzzy match.
const DefaultThreshold = 0.92

// Matcher holds the matching strategy. The zero value is not usable; use New.
type Matcher struct {
	Threshold float64
	Nicknames map[string]string
}

// New returns a Matcher using DefaultThreshold and the built-in nickname table.
func New() *Matcher {
	return &Matcher{Threshold: DefaultThreshold, Nicknames: defaultNicknames}
}

// Match resolves ref against candidates. External ids win outright, then an
// exact canonical name in the same chamber and state, then a fuzzy
// comparison. More than one fuzzy candidate above the threshold is Ambiguous.
func (m *Matcher) Match(ref models.MemberRef, candidates []models.Member) Result {
	if ref.ExternalID != "" {
		for i := range candidates {
			if c := &candidates[i]; c.ExternalID != nil && *c.ExternalID == ref.ExternalID {
				return Result{Status: Matched, Member: c, Score: 1, Exact: true}
			}
		}
	}

	pool := make([]*models.Member, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.Chamber != ref.Chamber {
			continue
		}
		if ref.State != "" && c.State != ref.State {
			continue
		}
		pool = append(pool, c)
	}

	var exact []*models.Member
	for _, c := range pool {
		if c.CanonicalName == ref.CanonicalName {
			exact = append(exact, c)
		}
	}
	switch len(exact) {
	case 1:
		return Result{Status: Matched, Member: exact[0], Score: 1, Exact: true}
	case 0:
	default:
		return Result{Status: Ambiguous, Score: 1}
	}

	want := m.key(ref.CanonicalName)
	var best *models.Member
	bestScore, hits := 0.0, 0
	for _, c := range pool {
		score := m.Similarity(want, m.key(c.CanonicalName))
		if score < m.Threshold {
			continue
		}
		hits++
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	switch {
	case hits == 1:
		return Result{Status: Matched, Member: best, Score: bestScore}
	case hits > 1:
		return Result{Status: Ambiguous, Score: bestScore}
	}
	return Result{Status: NoMatch}
}

// nameKey is a canonical name split into the parts the fuzzy pass compares.
type nameKey struct {
	first string
	last  string
	full  string
}

func (m *Matcher) key(name string) nameKey {
	s := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return nameKey{}
	}
	first := tokens[0]
	if formal, ok := m.Nicknames[first]; ok {
		first = formal
	}
	last := tokens[len(tokens)-1]
	tokens[0] = first
	return nameKey{first: first, last: last, full: strings.Join(tokens, " ")}
}

// Similarity scores two names in [0,1]. Surnames must be near-identical;
// given names compare after nickname expansion, and a lone initial matches
// any given name starting with it.
func (m *Matcher) Similarity(a, b nameKey) float64 {
	if a.last == "" || b.last == "" {
		return 0
	}
	if JaroWinkler(a.last, b.last) < m.Threshold {
		return 0
	}
	if a.first == b.first && a.last == b.last {
		return 1
	}
	if len(a.first) == 1 || len(b.first) == 1 {
		if a.first[0] == b.first[0] && a.last == b.last {
			return m.Threshold
		}
	}
	return JaroWinkler(a.full, b.full)
}
