package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nameTitles = map[string]bool{
	"hon": true, "honorable": true, "the": true, "rep": true, "representative": true,
	"sen": true, "senator": true, "congressman": true, "congresswoman": true,
	"dr": true, "mr": true, "mrs": true, "ms": true, "delegate": true,
}

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
	"md": true, "phd": true, "esq": true, "dds": true, "facs": true,
}

// FoldAccents strips combining marks, so "Velázquez" becomes "Velazquez".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// DisplayName tidies whitespace without changing the reported spelling.
func DisplayName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalName returns the matching form of a member name: accents folded,
// lowercased, titles and suffixes removed, "Last, First" reordered and
// middle initials dropped.
func CanonicalName(name string) string {
	s := FoldAccents(strings.TrimSpace(name))

	if i := strings.Index(s, ","); i >= 0 {
		head, tail := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		if isSuffixOnly(tail) {
			s = head
		} else {
			// "Last, First M., Jr." keeps any trailing suffix out of the reorder.
			if j := strings.Index(tail, ","); j >= 0 {
				tail = tail[:j]
			}
			s = tail + " " + head
		}
	}

	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '\'' || r == '’':
			return -1
		default:
			return ' '
		}
	}, s)

	tokens := strings.Fields(s)
	for len(tokens) > 0 && nameTitles[tokens[0]] {
		tokens = tokens[1:]
	}
	kept := tokens[:0]
	for _, tok := range tokens {
		if nameSuffixes[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	tokens = kept

	if len(tokens) > 2 {
		trimmed := make([]string, 0, len(tokens))
		for i, tok := range tokens {
			if len([]rune(tok)) == 1 && i != len(tokens)-1 {
				continue
			}
			trimmed = append(trimmed, tok)
		}
		if len(trimmed) >= 2 {
			tokens = trimmed
		}
	}
	return strings.Join(tokens, " ")
}

func isSuffixOnly(s string) bool {
	fields := strings.Fields(strings.ToLower(strings.NewReplacer(".", " ", ",", " ").Replace(s)))
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		if !nameSuffixes[f] {
			return false
		}
	}
	return true
}

// JoinName assembles a display name from API name parts.
func JoinName(first, middle, last, suffix string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{first, middle, last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	name := strings.Join(parts, " ")
	if suffix = strings.TrimSpace(suffix); suffix != "" {
		name += ", " + suffix
	}
	return name
}
