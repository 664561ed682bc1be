// backend/src/parsers/formats.go
package parsers

import (
	"strings"

	"github.com/username/tradevisor/backend/src/models"
)

// Canonical field keys used by the per-format alias tables.
const (
	fieldSymbol       = "symbol"
	fieldSide         = "side"
	fieldEntryPrice   = "entry_price"
	fieldExitPrice    = "exit_price"
	fieldPositionSize = "position_size"
	fieldLeverage     = "leverage"
	fieldFundingFee   = "funding_fee"
	fieldTradingFee   = "trading_fee"
	fieldOpenedAt     = "opened_at"
	fieldClosedAt     = "closed_at"
	fieldProfitLoss   = "profit_loss"
	fieldBroker       = "broker"
	fieldSetup        = "setup"
	fieldNotes        = "notes"
)

// FieldMapping maps a canonical field to the header aliases a broker uses for
// it, in preference order.
type FieldMapping map[string][]string

// FormatMappings holds one alias table per broker format. It is constructor
// configuration for the Normalizer, an immutable literal rather than hidden
// package state.
type FormatMappings map[models.BrokerFormat]FieldMapping

// DefaultFormatMappings returns the alias tables for every supported export
// format. The generic format is intentionally unmapped and yields no trades.
func DefaultFormatMappings() FormatMappings {
	return FormatMappings{
		models.FormatAppExport: {
			fieldSymbol:       {"symbol"},
			fieldSide:         {"side"},
			fieldEntryPrice:   {"entry_price"},
			fieldExitPrice:    {"exit_price"},
			fieldPositionSize: {"position_size", "size"},
			fieldLeverage:     {"leverage"},
			fieldFundingFee:   {"funding_fee"},
			fieldTradingFee:   {"trading_fee"},
			fieldOpenedAt:     {"opened_at", "open_date"},
			fieldClosedAt:     {"closed_at", "close_date"},
			fieldProfitLoss:   {"profit_loss", "pnl"},
			fieldBroker:       {"broker"},
			fieldSetup:        {"setup"},
			fieldNotes:        {"notes"},
		},
		models.FormatBinanceFutures: {
			fieldSymbol:       {"symbol"},
			fieldSide:         {"side", "direction"},
			fieldEntryPrice:   {"entry price", "avg entry price", "avg. entry price"},
			fieldExitPrice:    {"exit price", "avg close price", "avg. close price"},
			fieldPositionSize: {"qty", "quantity", "closed vol."},
			fieldLeverage:     {"leverage"},
			fieldFundingFee:   {"funding fee"},
			fieldTradingFee:   {"fee", "commission"},
			fieldOpenedAt:     {"open time", "opened"},
			fieldClosedAt:     {"close time", "closed", "time"},
			fieldProfitLoss:   {"realized profit", "realized pnl", "closing pnl"},
		},
		models.FormatBybit: {
			fieldSymbol:       {"contracts", "symbol"},
			fieldSide:         {"side", "direction", "trade type"},
			fieldEntryPrice:   {"avg entry price", "entry price"},
			fieldExitPrice:    {"avg exit price", "exit price"},
			fieldPositionSize: {"order qty", "qty", "closed size"},
			fieldLeverage:     {"leverage"},
			fieldFundingFee:   {"funding fee"},
			fieldTradingFee:   {"trading fee", "fee paid"},
			fieldOpenedAt:     {"create time", "open time"},
			fieldClosedAt:     {"trade time", "close time", "updated time"},
			fieldProfitLoss:   {"closed p&l", "realized p&l"},
		},
		models.FormatOKX: {
			fieldSymbol:       {"instrument id", "instrument", "underlying"},
			fieldSide:         {"side", "pos side"},
			fieldEntryPrice:   {"avg open px", "open px", "open avg px"},
			fieldExitPrice:    {"avg close px", "close px", "close avg px"},
			fieldPositionSize: {"size", "closed pos", "pos"},
			fieldLeverage:     {"lever", "leverage"},
			fieldFundingFee:   {"funding fee"},
			fieldTradingFee:   {"fee"},
			fieldOpenedAt:     {"open time", "create time"},
			fieldClosedAt:     {"close time", "update time"},
			fieldProfitLoss:   {"pnl", "realized pnl", "closed pnl"},
		},
		models.FormatGeneric: {},
	}
}

// DetectBrokerFormat matches lower-cased, trimmed headers against ordered,
// mutually-exclusive signatures, most specific first. The app's own export
// format wins over the exchange signatures so a round-tripped file never
// misdetects as Binance (both carry a "symbol" column). Unrecognized layouts
// fall back to generic, which maps to zero trades.
func DetectBrokerFormat(headers []string) models.BrokerFormat {
	set := make(map[string]bool, len(headers))
	var all []string
	for _, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		set[h] = true
		all = append(all, h)
	}
	contains := func(substr string) bool {
		for _, h := range all {
			if strings.Contains(h, substr) {
				return true
			}
		}
		return false
	}

	switch {
	case set["symbol"] && set["entry_price"] && set["exit_price"] && set["profit_loss"]:
		return models.FormatAppExport
	case contains("realized profit") || (set["symbol"] && set["qty"]):
		return models.FormatBinanceFutures
	case contains("closed p&l") || contains("order qty"):
		return models.FormatBybit
	case contains("instrument id") || contains("avg open px"):
		return models.FormatOKX
	default:
		return models.FormatGeneric
	}
}
