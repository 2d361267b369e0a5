package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// strictHTMLPolicy strips every tag and attribute.
var strictHTMLPolicy = bluemonday.StrictPolicy()

// SanitizeText removes all HTML tags and attributes from scraped text and
// collapses whitespace. Entities the policy escapes are decoded again so the
// result is plain text.
func SanitizeText(s string) string {
	clean := html.UnescapeString(strictHTMLPolicy.Sanitize(s))
	return strings.Join(strings.Fields(StripUnprintable(clean)), " ")
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1 // Drop the rune
	}, s)
}
