package normalizer

import (
	"regexp"
	"strings"
)

var (
	parenTickerRegex = regexp.MustCompile(`\(([A-Z]{1,5})\)`)
	bareTickerRegex  = regexp.MustCompile(`\b([A-Z]{1,5})\b`)
)

var tickerStopWords = map[string]bool{
	"THE": true, "AND": true, "OR": true, "FOR": true, "INC": true, "CORP": true,
	"CO": true, "LLC": true, "LP": true, "PLC": true, "LTD": true, "ETF": true,
	"A": true, "I": true, "US": true, "USD": true, "SP": true,
}

var noTicker = map[string]bool{"": true, "--": true, "N/A": true, "NA": true, "NONE": true}

// Ticker uppercases and trims a ticker symbol. Placeholders count as absent.
func Ticker(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimPrefix(t, "$")
	if noTicker[t] {
		return "", &Error{Code: UnknownTicker, Field: "ticker", Value: s}
	}
	return t, nil
}

// TickerFromText extracts a ticker from an asset description, preferring a
// parenthesized symbol such as "Apple Inc. (AAPL)".
func TickerFromText(text string) string {
	if m := parenTickerRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, m := range bareTickerRegex.FindAllStringSubmatch(text, -1) {
		if !tickerStopWords[m[1]] {
			return m[1]
		}
	}
	return ""
}

// tickerOrExtract prefers an explicit ticker column and falls back to the
// asset text.
func tickerOrExtract(explicit, asset string) (string, error) {
	if t, err := Ticker(explicit); err == nil {
		return t, nil
	}
	if t := TickerFromText(asset); t != "" {
		return t, nil
	}
	return "", &Error{Code: UnknownTicker, Field: "ticker", Value: explicit}
}
