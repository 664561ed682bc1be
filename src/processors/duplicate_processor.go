// backend/src/processors/duplicate_processor.go
package processors

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/username/tradevisor/backend/src/models"
)

// Tolerance policy for duplicate scoring. These are named so tests can assert
// behavior exactly at the boundaries.
const (
	// TimestampTolerance is how far apart two open/close timestamps may be
	// and still count as the same instant.
	TimestampTolerance = 15 * time.Minute
	// NumberAbsTolerance and NumberRelTolerance define numeric closeness:
	// within 0.5 absolute OR within 0.5% of the pair's average magnitude.
	NumberAbsTolerance = 0.5
	NumberRelTolerance = 0.005
	// MatchPercentThreshold and MinMatchedFields together decide the verdict:
	// at least 60% of the compared fields must agree AND at least two
	// independent fields, so a single coincidental match never flags a trade.
	MatchPercentThreshold = 0.6
	MinMatchedFields      = 2
	// DuplicateLookbackDays bounds which persisted trades are candidates.
	DuplicateLookbackDays = 90
)

// RecentTradeFetcher is the detector's single collaborator: the persisted
// trade store. Only non-deleted trades created since the given instant are
// returned, in store order.
type RecentTradeFetcher interface {
	FetchRecentTrades(ctx context.Context, userID int64, since time.Time) ([]models.PersistedTrade, error)
}

// DetectorConfig carries the symbol alias table and lookback window. The
// aliases are explicit construction data, not package state.
type DetectorConfig struct {
	// SymbolAliases rewrites known display names before normalization,
	// e.g. "DAX INDEX" -> "DAXINDEX".
	SymbolAliases map[string]string
	Lookback      time.Duration
}

// DefaultDetectorConfig returns the production tolerance configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		SymbolAliases: map[string]string{
			"DAX INDEX":    "DAXINDEX",
			"NAS100":       "NASDAQ100",
			"US100":        "NASDAQ100",
			"SPX500":       "SP500",
			"US500":        "SP500",
			"GOLD":         "XAUUSD",
			"WTI":          "USOIL",
			"CRUDE OIL":    "USOIL",
			"DOW JONES":    "US30",
			"GER40":        "DAXINDEX",
			"BTC/USDT":     "BTCUSDT",
			"ETH/USDT":     "ETHUSDT",
			"BITCOIN":      "BTCUSD",
			"ETHEREUM":     "ETHUSD",
			"DAX 40 INDEX": "DAXINDEX",
		},
		Lookback: DuplicateLookbackDays * 24 * time.Hour,
	}
}

// DuplicateDetector scores normalized trades against persisted history and
// against each other within an upload batch.
type DuplicateDetector struct {
	cfg   DetectorConfig
	store RecentTradeFetcher
}

func NewDuplicateDetector(cfg DetectorConfig, store RecentTradeFetcher) *DuplicateDetector {
	return &DuplicateDetector{cfg: cfg, store: store}
}

// NormalizeSymbol produces the comparison form of a symbol: uppercase,
// trimmed, alias-rewritten, then stripped of all non-alphanumerics. The
// original symbol is preserved for display; this form is only for matching.
// Idempotent: normalizing an already-normalized symbol is a no-op.
func (d *DuplicateDetector) NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if alias, ok := d.cfg.SymbolAliases[s]; ok {
		s = alias
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TimestampsClose reports whether two instants are within the tolerance window.
func TimestampsClose(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= TimestampTolerance
}

// SameCalendarDay reports year/month/day equality in local time.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NumbersClose reports whether two values agree within the absolute tolerance
// or within the relative tolerance of their average magnitude. Two zeros count
// as close.
func NumbersClose(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= NumberAbsTolerance {
		return true
	}
	avg := (math.Abs(a) + math.Abs(b)) / 2
	if avg == 0 {
		return diff == 0
	}
	return diff/avg <= NumberRelTolerance
}

// TradeFields is the optional-field view both trade representations are
// compared through. Nil pointers mean the field is absent on that record and
// the corresponding check is skipped.
type TradeFields struct {
	Symbol       string
	Side         string
	OpenedAt     *time.Time
	ClosedAt     *time.Time
	TradeDate    *time.Time
	CreatedAt    *time.Time
	ProfitLoss   *float64
	ROI          *float64
	EntryPrice   *float64
	ExitPrice    *float64
	PositionSize *float64
}

// FieldsFromNormalized adapts a freshly normalized trade for scoring.
func FieldsFromNormalized(t models.NormalizedTrade) TradeFields {
	return TradeFields{
		Symbol:       t.Symbol,
		Side:         t.Side,
		OpenedAt:     timePtr(t.OpenedAt),
		ClosedAt:     timePtr(t.ClosedAt),
		ProfitLoss:   &t.ProfitLoss,
		ROI:          &t.ROI,
		EntryPrice:   &t.EntryPrice,
		ExitPrice:    &t.ExitPrice,
		PositionSize: &t.PositionSize,
	}
}

// FieldsFromPersisted adapts a stored trade for scoring. Zero timestamps are
// treated as absent.
func FieldsFromPersisted(t models.PersistedTrade) TradeFields {
	return TradeFields{
		Symbol:       t.Symbol,
		Side:         t.Side,
		OpenedAt:     timePtr(t.OpenedAt),
		ClosedAt:     timePtr(t.ClosedAt),
		CreatedAt:    timePtr(t.CreatedAt),
		ProfitLoss:   &t.ProfitLoss,
		ROI:          &t.ROI,
		EntryPrice:   &t.EntryPrice,
		ExitPrice:    &t.ExitPrice,
		PositionSize: &t.PositionSize,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// IsDuplicate scores a candidate against another record. The symbol is a hard
// gate, not a scored field: a normalized-symbol mismatch short-circuits to a
// non-duplicate unless skipSymbolCheck is set (used for the within-batch pass,
// where rows of the same file may spell the symbol differently).
//
// Every field pair present on both records increments the check count; every
// closeness hit increments the score and appends a reason tag. The verdict is
// duplicate iff score/checks >= MatchPercentThreshold and score >=
// MinMatchedFields.
func (d *DuplicateDetector) IsDuplicate(candidate, other TradeFields, skipSymbolCheck bool) models.DuplicateVerdict {
	if !skipSymbolCheck && d.NormalizeSymbol(candidate.Symbol) != d.NormalizeSymbol(other.Symbol) {
		return models.DuplicateVerdict{}
	}

	score := 0
	checks := 0
	var reasons []string
	hit := func(tag string) {
		score++
		reasons = append(reasons, tag)
	}

	// Timestamps first; calendar-day fields are only a fallback when no
	// timestamp pair matched.
	dateMatched := false
	if candidate.OpenedAt != nil && other.OpenedAt != nil {
		checks++
		if TimestampsClose(*candidate.OpenedAt, *other.OpenedAt) {
			hit("opened_at")
			dateMatched = true
		}
	}
	if candidate.ClosedAt != nil && other.ClosedAt != nil {
		checks++
		if TimestampsClose(*candidate.ClosedAt, *other.ClosedAt) {
			hit("closed_at")
			dateMatched = true
		}
	}
	if !dateMatched {
		switch {
		case candidate.TradeDate != nil && other.TradeDate != nil:
			checks++
			if SameCalendarDay(*candidate.TradeDate, *other.TradeDate) {
				hit("trade_date")
			}
		case candidate.CreatedAt != nil && other.CreatedAt != nil:
			checks++
			if SameCalendarDay(*candidate.CreatedAt, *other.CreatedAt) {
				hit("created_at")
			}
		}
	}

	numeric := []struct {
		tag  string
		a, b *float64
	}{
		{"profit_loss", candidate.ProfitLoss, other.ProfitLoss},
		{"roi", candidate.ROI, other.ROI},
		{"entry_price", candidate.EntryPrice, other.EntryPrice},
		{"exit_price", candidate.ExitPrice, other.ExitPrice},
		{"position_size", candidate.PositionSize, other.PositionSize},
	}
	for _, n := range numeric {
		if n.a == nil || n.b == nil {
			continue
		}
		checks++
		if NumbersClose(*n.a, *n.b) {
			hit(n.tag)
		}
	}

	if candidate.Side != "" && other.Side != "" {
		checks++
		if strings.EqualFold(candidate.Side, other.Side) {
			hit("side")
		}
	}

	pct := 0.0
	if checks > 0 {
		pct = float64(score) / float64(checks)
	}
	return models.DuplicateVerdict{
		IsDuplicate: pct >= MatchPercentThreshold && score >= MinMatchedFields,
		MatchScore:  pct,
		Reasons:     reasons,
	}
}

// CheckForDuplicates runs the two-pass batch scan and returns a verdict per
// flagged batch index.
//
// Pass 1 tests each trade against the user's recent history; the first
// persisted trade that scores as a duplicate wins, in store order. Ties are
// therefore resolved by store order, not score magnitude. Callers depend on
// that order staying stable.
//
// Pass 2 tests every unordered pair within the batch, symbol gate relaxed;
// the later index is flagged so earlier trades always win. O(n^2) over the
// batch is accepted: uploads are at most a few hundred rows.
func (d *DuplicateDetector) CheckForDuplicates(ctx context.Context, trades []models.NormalizedTrade, userID int64) (map[int]models.DuplicateVerdict, error) {
	since := time.Now().Add(-d.cfg.Lookback)
	persisted, err := d.store.FetchRecentTrades(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	flagged := make(map[int]models.DuplicateVerdict)
	fields := make([]TradeFields, len(trades))
	for i, t := range trades {
		fields[i] = FieldsFromNormalized(t)
	}

	for i := range trades {
		for _, p := range persisted {
			verdict := d.IsDuplicate(fields[i], FieldsFromPersisted(p), false)
			if verdict.IsDuplicate {
				verdict.MatchedTrade = &models.MatchedTrade{
					Source:     models.MatchSourceHistory,
					TradeID:    p.ID,
					Symbol:     p.Symbol,
					Side:       p.Side,
					ProfitLoss: p.ProfitLoss,
					ClosedAt:   p.ClosedAt,
				}
				flagged[i] = verdict
				break
			}
		}
	}

	for i := 0; i < len(trades); i++ {
		if _, ok := flagged[i]; ok {
			continue
		}
		for j := i + 1; j < len(trades); j++ {
			if _, ok := flagged[j]; ok {
				continue
			}
			verdict := d.IsDuplicate(fields[i], fields[j], true)
			if verdict.IsDuplicate {
				verdict.MatchedTrade = &models.MatchedTrade{
					Source:     models.MatchSourceCurrentBatch,
					BatchIndex: i,
					Symbol:     trades[i].Symbol,
					Side:       trades[i].Side,
					ProfitLoss: trades[i].ProfitLoss,
					ClosedAt:   trades[i].ClosedAt,
				}
				flagged[j] = verdict
			}
		}
	}
	return flagged, nil
}
