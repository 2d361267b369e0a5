package feed

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/sources/fetch"
)

// report is the per-filing shape some snapshot files use: filer details
// with the transactions nested underneath.
type report struct {
	FirstName    string                `json:"first_name"`
	LastName     string                `json:"last_name"`
	Office       string                `json:"office"`
	State        string                `json:"state"`
	PTRLink      string                `json:"ptr_link"`
	DateReceived string                `json:"date_recieved"`
	Transactions []models.RawFeedTrade `json:"transactions"`
}

func decodeRows(name, format string, resp *fetch.Response) ([]models.RawFeedTrade, error) {
	if format == "" {
		format = detectFormat(name, resp)
	}
	switch format {
	case "csv":
		return decodeCSV(resp.Body)
	case "json":
		return decodeJSON(resp.Body)
	}
	return nil, fmt.Errorf("%s: unknown snapshot format", name)
}

func detectFormat(name string, resp *fetch.Response) string {
	switch strings.ToLower(path.Ext(strings.SplitN(name, "?", 2)[0])) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	}
	switch mt := resp.MediaType(); {
	case strings.Contains(mt, "csv"):
		return "csv"
	case strings.Contains(mt, "json"):
		return "json"
	}
	if trimmed := bytes.TrimSpace(resp.Body); len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return "json"
	}
	return "csv"
}

func decodeJSON(body []byte) ([]models.RawFeedTrade, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode json snapshot: %w", err)
	}
	var rows []models.RawFeedTrade
	for i, item := range items {
		var probe struct {
			Transactions json.RawMessage `json:"transactions"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			return nil, fmt.Errorf("decode json snapshot item %d: %w", i, err)
		}
		if probe.Transactions == nil {
			var row models.RawFeedTrade
			if err := json.Unmarshal(item, &row); err != nil {
				return nil, fmt.Errorf("decode json snapshot item %d: %w", i, err)
			}
			rows = append(rows, row)
			continue
		}
		var rep report
		if err := json.Unmarshal(item, &rep); err != nil {
			return nil, fmt.Errorf("decode json report %d: %w", i, err)
		}
		filer := strings.TrimSpace(rep.FirstName + " " + rep.LastName)
		for _, tx := range rep.Transactions {
			if tx.Senator == "" {
				tx.Senator = filer
			}
			if tx.State == "" {
				tx.State = rep.State
			}
			if tx.FilingDate == "" {
				tx.FilingDate = rep.DateReceived
			}
			if tx.PTRLink == "" {
				tx.PTRLink = rep.PTRLink
			}
			rows = append(rows, tx)
		}
	}
	return rows, nil
}

// csvColumns maps normalized header names onto row fields.
var csvColumns = map[string]func(*models.RawFeedTrade, string){
	"senator":               func(r *models.RawFeedTrade, v string) { r.Senator = v },
	"representative":        func(r *models.RawFeedTrade, v string) { r.Senator = v },
	"member":                func(r *models.RawFeedTrade, v string) { r.Senator = v },
	"name":                  func(r *models.RawFeedTrade, v string) { r.Senator = v },
	"state":                 func(r *models.RawFeedTrade, v string) { r.State = v },
	"party":                 func(r *models.RawFeedTrade, v string) { r.Party = v },
	"chamber":               func(r *models.RawFeedTrade, v string) { r.Chamber = v },
	"owner":                 func(r *models.RawFeedTrade, v string) { r.Owner = v },
	"ticker":                func(r *models.RawFeedTrade, v string) { r.Ticker = v },
	"asset_description":     func(r *models.RawFeedTrade, v string) { r.AssetDescription = v },
	"asset":                 func(r *models.RawFeedTrade, v string) { r.AssetDescription = v },
	"company":               func(r *models.RawFeedTrade, v string) { r.AssetDescription = v },
	"type":                  func(r *models.RawFeedTrade, v string) { r.Type = v },
	"transaction_type":      func(r *models.RawFeedTrade, v string) { r.Type = v },
	"transaction_date":      func(r *models.RawFeedTrade, v string) { r.TransactionDate = v },
	"filing_date":           func(r *models.RawFeedTrade, v string) { r.FilingDate = v },
	"disclosure_date":       func(r *models.RawFeedTrade, v string) { r.FilingDate = v },
	"amount":                func(r *models.RawFeedTrade, v string) { r.Amount = v },
	"amount_min":            func(r *models.RawFeedTrade, v string) { r.AmountMin = v },
	"amount_max":            func(r *models.RawFeedTrade, v string) { r.AmountMax = v },
	"amount_exact":          func(r *models.RawFeedTrade, v string) { r.AmountExact = v },
	"comment":               func(r *models.RawFeedTrade, v string) { r.Comment = v },
	"ptr_link":              func(r *models.RawFeedTrade, v string) { r.PTRLink = v },
	"exchange_from_ticker":  func(r *models.RawFeedTrade, v string) { r.ExchangeFromTicker = v },
	"exchange_from_company": func(r *models.RawFeedTrade, v string) { r.ExchangeFromCompany = v },
	"exchange_from_amount":  func(r *models.RawFeedTrade, v string) { r.ExchangeFromAmount = v },
	"exchange_ratio":        func(r *models.RawFeedTrade, v string) { r.ExchangeRatio = v },
	"exchange_reason":       func(r *models.RawFeedTrade, v string) { r.ExchangeReason = v },
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func decodeCSV(body []byte) ([]models.RawFeedTrade, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	setters := make([]func(*models.RawFeedTrade, string), len(header))
	mapped := 0
	for i, h := range header {
		if set, ok := csvColumns[headerKey(h)]; ok {
			setters[i] = set
			mapped++
		}
	}
	if mapped == 0 {
		return nil, fmt.Errorf("csv header has no known columns: %v", header)
	}

	var rows []models.RawFeedTrade
	for line := 2; ; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		var row models.RawFeedTrade
		for i, v := range fields {
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, strings.TrimSpace(v))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
