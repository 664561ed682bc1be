// backend/src/models/trade.go
package models

import "time"

// RawRow is an untyped column-name -> string mapping produced by CSV parsing.
// It only exists inside the normalizer boundary; everything downstream works
// on NormalizedTrade.
type RawRow map[string]string

// BrokerFormat tags the column layout of a specific exchange's trade-history export.
type BrokerFormat string

const (
	FormatAppExport      BrokerFormat = "app-export"
	FormatBinanceFutures BrokerFormat = "binance-futures"
	FormatBybit          BrokerFormat = "bybit"
	FormatOKX            BrokerFormat = "okx"
	FormatGeneric        BrokerFormat = "generic"
)

// Trade sides. Anything a broker reports as buy/long maps to SideLong,
// sell/short maps to SideShort.
const (
	SideLong  = "long"
	SideShort = "short"
)

// Period-of-day buckets derived from the local hour of ClosedAt.
const (
	PeriodMorning   = "morning"   // 05:00-11:59
	PeriodAfternoon = "afternoon" // 12:00-17:59
	PeriodNight     = "night"
)

// NormalizedTrade is the canonical trade record every broker export is mapped into.
// It lives only for the duration of a reconciliation pass: accepted trades become
// PersistedTrade rows via the store, duplicates are discarded.
type NormalizedTrade struct {
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"` // "long" or "short"
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	PositionSize float64   `json:"position_size"`
	Leverage     float64   `json:"leverage"`
	Margin       float64   `json:"margin"` // derived: position_size * entry_price / leverage
	FundingFee   float64   `json:"funding_fee"`
	TradingFee   float64   `json:"trading_fee"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosedAt     time.Time `json:"closed_at"`
	ProfitLoss   float64   `json:"profit_loss"`
	ROI          float64   `json:"roi"` // derived: profit_loss / margin * 100

	DurationDays    int    `json:"duration_days"`
	DurationHours   int    `json:"duration_hours"`
	DurationMinutes int    `json:"duration_minutes"`
	PeriodOfDay     string `json:"period_of_day"`

	Broker string `json:"broker,omitempty"`
	Setup  string `json:"setup,omitempty"`
	Notes  string `json:"notes,omitempty"`

	// HashID identifies the trade for the store's uniqueness constraint.
	// Stamped by the trade processor, empty until then.
	HashID string `json:"hash_id,omitempty"`
}

// RecalculateDerived recomputes margin, roi, the duration components and the
// period-of-day bucket from the primary fields. Zero leverage is treated as 1x,
// zero margin yields roi 0 (never a division error).
func (t *NormalizedTrade) RecalculateDerived() {
	leverage := t.Leverage
	if leverage == 0 {
		leverage = 1
	}
	t.Margin = t.PositionSize * t.EntryPrice / leverage
	if t.Margin != 0 {
		t.ROI = t.ProfitLoss / t.Margin * 100
	} else {
		t.ROI = 0
	}

	d := t.ClosedAt.Sub(t.OpenedAt)
	if d < 0 {
		d = 0
	}
	t.DurationDays = int(d.Hours()) / 24
	t.DurationHours = int(d.Hours()) % 24
	t.DurationMinutes = int(d.Minutes()) % 60

	switch hour := t.ClosedAt.Hour(); {
	case hour >= 5 && hour < 12:
		t.PeriodOfDay = PeriodMorning
	case hour >= 12 && hour < 18:
		t.PeriodOfDay = PeriodAfternoon
	default:
		t.PeriodOfDay = PeriodNight
	}
}

// PersistedTrade is a trade already stored for a user. Only non-deleted rows
// created within the duplicate lookback window are duplicate candidates.
type PersistedTrade struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	PositionSize float64   `json:"position_size"`
	Leverage     float64   `json:"leverage"`
	Margin       float64   `json:"margin"`
	FundingFee   float64   `json:"funding_fee"`
	TradingFee   float64   `json:"trading_fee"`
	ProfitLoss   float64   `json:"profit_loss"`
	ROI          float64   `json:"roi"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosedAt     time.Time `json:"closed_at"`

	// DurationMinutes is the stored total; the day/hour/minute split shown in
	// exports is derived from it.
	DurationMinutes int    `json:"duration_minutes"`
	PeriodOfDay     string `json:"period_of_day,omitempty"`

	Broker    string     `json:"broker,omitempty"`
	Setup     string     `json:"setup,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	HashID    string     `json:"hash_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Matched-trade sources in a DuplicateVerdict.
const (
	MatchSourceHistory      = "history"
	MatchSourceCurrentBatch = "current_batch"
)

// MatchedTrade identifies the record a duplicate candidate collided with:
// either a persisted trade (TradeID set) or an earlier row of the same
// upload batch (BatchIndex set).
type MatchedTrade struct {
	Source     string    `json:"source"` // "history" or "current_batch"
	TradeID    int64     `json:"trade_id,omitempty"`
	BatchIndex int       `json:"batch_index"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side,omitempty"`
	ProfitLoss float64   `json:"profit_loss"`
	ClosedAt   time.Time `json:"closed_at"`
}

// DuplicateVerdict is the outcome of scoring one batch trade against history
// and the rest of its batch. MatchScore is the fraction of compared fields
// that agreed, in [0,1]. Reasons lists the matched field tags in check order.
type DuplicateVerdict struct {
	IsDuplicate  bool          `json:"is_duplicate"`
	MatchedTrade *MatchedTrade `json:"matched_trade,omitempty"`
	MatchScore   float64       `json:"match_score"`
	Reasons      []string      `json:"reasons"`
}

// TradeValidationError is one field-level problem on one row of an upload.
// Validation always enumerates every problem so the review UI can show them
// all at once.
type TradeValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}
