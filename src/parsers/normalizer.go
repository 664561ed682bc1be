// backend/src/parsers/normalizer.go
package parsers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/username/tradevisor/backend/src/models"
)

// Normalizer maps untyped CSV rows into NormalizedTrade records using the
// alias tables it was constructed with.
type Normalizer struct {
	mappings FormatMappings
	now      func() time.Time
}

// NewNormalizer builds a Normalizer over an explicit set of format mappings.
func NewNormalizer(mappings FormatMappings) *Normalizer {
	return &Normalizer{mappings: mappings, now: time.Now}
}

// Date layouts tried in order by parseDate. Broker exports disagree wildly
// here, so parsing is permissive.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
}

// MapRowsToTrades converts rows of the given format into normalized trades.
// Rows missing a symbol or with non-positive prices are dropped, not errors:
// they are simply unmapped. The returned warnings flag rows whose dates could
// not be parsed and fell back to "now"; callers must surface these as
// data-quality warnings rather than a silent success.
func (n *Normalizer) MapRowsToTrades(rows []models.RawRow, format models.BrokerFormat) ([]models.NormalizedTrade, []string) {
	mapping, ok := n.mappings[format]
	if !ok || len(mapping) == 0 {
		return nil, nil
	}

	var (
		trades   []models.NormalizedTrade
		warnings []string
	)
	for i, row := range rows {
		trade := models.NormalizedTrade{
			Symbol:       lookup(row, mapping, fieldSymbol),
			Side:         normalizeSide(lookup(row, mapping, fieldSide)),
			EntryPrice:   parseFloat(lookup(row, mapping, fieldEntryPrice), 0),
			ExitPrice:    parseFloat(lookup(row, mapping, fieldExitPrice), 0),
			PositionSize: parseFloat(lookup(row, mapping, fieldPositionSize), 0),
			Leverage:     parseFloat(lookup(row, mapping, fieldLeverage), 1),
			FundingFee:   parseFloat(lookup(row, mapping, fieldFundingFee), 0),
			TradingFee:   parseFloat(lookup(row, mapping, fieldTradingFee), 0),
			ProfitLoss:   parseFloat(lookup(row, mapping, fieldProfitLoss), 0),
			Broker:       lookup(row, mapping, fieldBroker),
			Setup:        lookup(row, mapping, fieldSetup),
			Notes:        lookup(row, mapping, fieldNotes),
		}
		if trade.Broker == "" {
			trade.Broker = string(format)
		}

		openedAt, openedOK := parseDate(lookup(row, mapping, fieldOpenedAt))
		closedAt, closedOK := parseDate(lookup(row, mapping, fieldClosedAt))
		now := n.now()
		if !openedOK {
			openedAt = now
		}
		if !closedOK {
			closedAt = now
		}
		trade.OpenedAt = openedAt
		trade.ClosedAt = closedAt
		if hadDateValue(row, mapping, fieldOpenedAt) && !openedOK {
			warnings = append(warnings, fmt.Sprintf("row %d: could not parse open date %q, using current time", i, lookup(row, mapping, fieldOpenedAt)))
		}
		if hadDateValue(row, mapping, fieldClosedAt) && !closedOK {
			warnings = append(warnings, fmt.Sprintf("row %d: could not parse close date %q, using current time", i, lookup(row, mapping, fieldClosedAt)))
		}

		if strings.TrimSpace(trade.Symbol) == "" || trade.EntryPrice <= 0 || trade.ExitPrice <= 0 {
			continue
		}

		trade.RecalculateDerived()
		trades = append(trades, trade)
	}
	return trades, warnings
}

// lookup resolves a canonical field against a row: exact alias match first,
// then a case-insensitive pass over the row's columns.
func lookup(row models.RawRow, mapping FieldMapping, field string) string {
	aliases, ok := mapping[field]
	if !ok {
		return ""
	}
	for _, alias := range aliases {
		if v, ok := row[alias]; ok && v != "" {
			return v
		}
	}
	for _, alias := range aliases {
		for col, v := range row {
			if v != "" && strings.EqualFold(strings.TrimSpace(col), alias) {
				return v
			}
		}
	}
	return ""
}

func hadDateValue(row models.RawRow, mapping FieldMapping, field string) bool {
	return strings.TrimSpace(lookup(row, mapping, field)) != ""
}

func normalizeSide(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sell", "short":
		return models.SideShort
	default:
		return models.SideLong
	}
}

// parseFloat reads broker-formatted numerics: thousands separators, currency
// prefixes and percent suffixes are tolerated. Absent or unreadable values
// yield the default.
func parseFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	s = strings.NewReplacer(",", "", "$", "", "%", "", " ", "", "USDT", "", "USD", "").Replace(s)
	if s == "" || s == "-" || s == "--" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// Some exchanges export epoch timestamps, in seconds or milliseconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		if n > 1e9 {
			return time.Unix(n, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// ValidateTrades runs one pass over the batch and collects every field-level
// problem, row-indexed. It never short-circuits: the caller gets the complete
// list so all problems can be displayed at once.
func ValidateTrades(trades []models.NormalizedTrade) (bool, []models.TradeValidationError) {
	var errs []models.TradeValidationError
	add := func(row int, field, msg string) {
		errs = append(errs, models.TradeValidationError{Row: row, Field: field, Message: msg})
	}
	for i, t := range trades {
		if strings.TrimSpace(t.Symbol) == "" {
			add(i, "symbol", "symbol is missing")
		}
		if t.EntryPrice <= 0 {
			add(i, "entry_price", "entry price must be greater than zero")
		}
		if t.ExitPrice <= 0 {
			add(i, "exit_price", "exit price must be greater than zero")
		}
		if t.Side == "" {
			add(i, "side", "side is missing")
		}
		if t.PositionSize <= 0 {
			add(i, "position_size", "position size must be greater than zero")
		}
		if t.ClosedAt.Before(t.OpenedAt) {
			add(i, "closed_at", "exit date is before entry date")
		}
	}
	return len(errs) == 0, errs
}
