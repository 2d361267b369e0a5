package document

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/security/validation"
	"golang.org/x/net/html"
)

var (
	errNoMember = errors.New("no member name found")
	errNoTable  = errors.New("no transaction table found")

	stateRe       = regexp.MustCompile(`State(?:/District)?:\s*([A-Z]{2})`)
	titlePrefixRe = regexp.MustCompile(`(?i)^.*\b(report|disclosure)\s+(for|of)\s+`)
)

type column int

const (
	colNone column = iota
	colAsset
	colTicker
	colOwner
	colType
	colDate
	colFiling
	colAmount
)

// headerColumn maps a table header cell to the field it holds. Filing date
// headers are checked before the generic date match.
func headerColumn(text string) column {
	h := strings.ToLower(text)
	switch {
	case strings.Contains(h, "ticker"), h == "symbol":
		return colTicker
	case strings.Contains(h, "asset"), strings.Contains(h, "description"), strings.Contains(h, "security"):
		return colAsset
	case strings.Contains(h, "owner"):
		return colOwner
	case strings.Contains(h, "notification"), strings.Contains(h, "notified"),
		strings.Contains(h, "filing"), strings.Contains(h, "filed"):
		return colFiling
	case strings.Contains(h, "date"):
		return colDate
	case strings.Contains(h, "type"):
		return colType
	case strings.Contains(h, "amount"), strings.Contains(h, "value"):
		return colAmount
	}
	return colNone
}

// parseDisclosure extracts the filer and every transaction row of a
// disclosure page.
func parseDisclosure(body []byte, chamber string) ([]models.RawDisclosureRow, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	name := memberName(doc)
	if name == "" {
		return nil, errNoMember
	}
	state := ""
	if n := first(doc, hasClass("member-state")); n != nil {
		state = text(n)
	} else if m := stateRe.FindStringSubmatch(text(doc)); m != nil {
		state = m[1]
	}

	var rows []models.RawDisclosureRow
	for _, table := range findAll(doc, func(n *html.Node) bool { return isElement(n, "table") }) {
		rows = append(rows, tableRows(table, name, chamber, state)...)
	}
	if len(rows) == 0 {
		return nil, errNoTable
	}
	return rows, nil
}

func memberName(doc *html.Node) string {
	for _, match := range []func(*html.Node) bool{
		hasClass("member-name"),
		hasClass("disclosure-title"),
		func(n *html.Node) bool { return isElement(n, "h1") },
		func(n *html.Node) bool { return isElement(n, "h2") },
	} {
		if n := first(doc, match); n != nil {
			if name := cleanName(text(n)); name != "" {
				return name
			}
		}
	}
	return ""
}

// cleanName drops report captions around the filer's name.
func cleanName(s string) string {
	s = titlePrefixRe.ReplaceAllString(s, "")
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

func tableRows(table *html.Node, member, chamber, state string) []models.RawDisclosureRow {
	trs := findAll(table, func(n *html.Node) bool { return isElement(n, "tr") })
	if len(trs) < 2 {
		return nil
	}
	headerIdx := 0
	for i, tr := range trs {
		if first(tr, func(n *html.Node) bool { return isElement(n, "th") }) != nil {
			headerIdx = i
			break
		}
	}
	var cols []column
	found := make(map[column]bool)
	for _, cell := range cells(trs[headerIdx]) {
		c := headerColumn(text(cell))
		if found[c] {
			c = colNone
		}
		found[c] = true
		cols = append(cols, c)
	}
	if !(found[colAsset] || found[colTicker]) || !found[colType] || !found[colDate] || !found[colAmount] {
		return nil
	}

	var rows []models.RawDisclosureRow
	for _, tr := range trs[headerIdx+1:] {
		tds := cells(tr)
		row := models.RawDisclosureRow{MemberName: member, Chamber: chamber, State: state}
		empty := true
		for i, td := range tds {
			if i >= len(cols) {
				break
			}
			v := text(td)
			if v != "" {
				empty = false
			}
			switch cols[i] {
			case colAsset:
				row.Asset = v
			case colTicker:
				row.Ticker = v
			case colOwner:
				row.Owner = v
			case colType:
				row.Type = v
			case colDate:
				row.TransactionDate = v
			case colFiling:
				row.FilingDate = v
			case colAmount:
				row.Amount = v
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}

func cells(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "td") || isElement(c, "th") {
			out = append(out, c)
		}
	}
	return out
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func first(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := first(c, match); n != nil {
			return n
		}
	}
	return nil
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// text returns the sanitized text content of a node, skipping scripts.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case isElement(n, "script"), isElement(n, "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return validation.SanitizeText(html.EscapeString(b.String()))
}
