package normalizer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a parsed disclosure amount. At most one of Exact or the
// (Min, Max) pair is set; all fields are null when undisclosed.
type Amount struct {
	Exact decimal.NullDecimal
	Min   decimal.NullDecimal
	Max   decimal.NullDecimal
}

var (
	rangeSplitRegex = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
	overRegex       = regexp.MustCompile(`(?i)^(?:over|above|more than|greater than|>)\s*(.+)$`)
	plusRegex       = regexp.MustCompile(`(?i)^(.+?)\s*(?:\+|or more|and over)$`)
	underRegex      = regexp.MustCompile(`(?i)^(?:under|below|less than|<)\s*(.+)$`)
)

var undisclosedAmounts = map[string]bool{
	"": true, "--": true, "n/a": true, "na": true, "unknown": true, "undisclosed": true, "none": true,
}

// ParseAmount parses free-text disclosure amounts such as "$1,001 - $15,000",
// "Over $50,000,000" or "$12,345.67".
func ParseAmount(text string) (Amount, error) {
	s := strings.TrimSpace(text)
	if undisclosedAmounts[strings.ToLower(s)] {
		return Amount{}, nil
	}
	fail := &Error{Code: UnparsableAmount, Field: "amount", Value: text}

	if m := overRegex.FindStringSubmatch(s); m != nil {
		v, err := parseMoney(m[1])
		if err != nil {
			return Amount{}, fail
		}
		return Amount{Min: decimal.NewNullDecimal(v)}, nil
	}
	if m := underRegex.FindStringSubmatch(s); m != nil {
		v, err := parseMoney(m[1])
		if err != nil {
			return Amount{}, fail
		}
		return Amount{Max: decimal.NewNullDecimal(v)}, nil
	}
	if m := plusRegex.FindStringSubmatch(s); m != nil {
		v, err := parseMoney(m[1])
		if err != nil {
			return Amount{}, fail
		}
		return Amount{Min: decimal.NewNullDecimal(v)}, nil
	}

	parts := rangeSplitRegex.Split(s, -1)
	switch len(parts) {
	case 1:
		v, err := parseMoney(parts[0])
		if err != nil {
			return Amount{}, fail
		}
		return Amount{Exact: decimal.NewNullDecimal(v)}, nil
	case 2:
		lo, err := parseMoney(parts[0])
		if err != nil {
			return Amount{}, fail
		}
		hi, err := parseMoney(parts[1])
		if err != nil {
			return Amount{}, fail
		}
		if lo.Equal(hi) {
			return Amount{Exact: decimal.NewNullDecimal(lo)}, nil
		}
		return Amount{Min: decimal.NewNullDecimal(lo), Max: decimal.NewNullDecimal(hi)}, nil
	}
	return Amount{}, fail
}

// ParseAmountFields combines structured amount columns, which take
// precedence, with the free-text fallback.
func ParseAmountFields(exact, min, max, text string) (Amount, error) {
	if strings.TrimSpace(exact) != "" {
		v, err := parseMoney(exact)
		if err != nil {
			return Amount{}, &Error{Code: UnparsableAmount, Field: "amount_exact", Value: exact}
		}
		return Amount{Exact: decimal.NewNullDecimal(v)}, nil
	}
	if strings.TrimSpace(min) != "" || strings.TrimSpace(max) != "" {
		var a Amount
		if strings.TrimSpace(min) != "" {
			v, err := parseMoney(min)
			if err != nil {
				return Amount{}, &Error{Code: UnparsableAmount, Field: "amount_min", Value: min}
			}
			a.Min = decimal.NewNullDecimal(v)
		}
		if strings.TrimSpace(max) != "" {
			v, err := parseMoney(max)
			if err != nil {
				return Amount{}, &Error{Code: UnparsableAmount, Field: "amount_max", Value: max}
			}
			a.Max = decimal.NewNullDecimal(v)
		}
		return a, nil
	}
	return ParseAmount(text)
}

// ParseMoney parses a single currency value, tolerating "$" and thousands separators.
func ParseMoney(s string) (decimal.Decimal, error) {
	return parseMoney(s)
}

func parseMoney(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", "USD", "", "usd", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Decimal{}, &Error{Code: UnparsableAmount, Field: "amount", Value: s}
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if v.IsNegative() {
		v = v.Abs()
	}
	return v, nil
}
