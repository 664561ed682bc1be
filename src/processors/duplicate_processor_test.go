package processors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevisor/backend/src/models"
)

// fakeTradeFetcher serves a fixed slice in declared order, mimicking the
// store's id-ascending contract.
type fakeTradeFetcher struct {
	trades []models.PersistedTrade
	err    error
}

func (f *fakeTradeFetcher) FetchRecentTrades(_ context.Context, _ int64, _ time.Time) ([]models.PersistedTrade, error) {
	return f.trades, f.err
}

func newTestDetector(persisted ...models.PersistedTrade) *DuplicateDetector {
	return NewDuplicateDetector(DefaultDetectorConfig(), &fakeTradeFetcher{trades: persisted})
}

func baseTrade(closedAt time.Time) models.NormalizedTrade {
	t := models.NormalizedTrade{
		Symbol:       "BTCUSDT",
		Side:         models.SideLong,
		EntryPrice:   42000,
		ExitPrice:    43000,
		PositionSize: 0.5,
		Leverage:     10,
		ProfitLoss:   500,
		OpenedAt:     closedAt.Add(-2 * time.Hour),
		ClosedAt:     closedAt,
	}
	t.RecalculateDerived()
	return t
}

func persistedFrom(id int64, t models.NormalizedTrade) models.PersistedTrade {
	return models.PersistedTrade{
		ID:           id,
		UserID:       1,
		Symbol:       t.Symbol,
		Side:         t.Side,
		EntryPrice:   t.EntryPrice,
		ExitPrice:    t.ExitPrice,
		PositionSize: t.PositionSize,
		Leverage:     t.Leverage,
		ProfitLoss:   t.ProfitLoss,
		ROI:          t.ROI,
		OpenedAt:     t.OpenedAt,
		ClosedAt:     t.ClosedAt,
		CreatedAt:    t.ClosedAt.Add(time.Hour),
	}
}

func TestNormalizeSymbol(t *testing.T) {
	t.Parallel()

	d := newTestDetector()

	assert.Equal(t, "BTCUSDT", d.NormalizeSymbol(" btc/usdt "))
	assert.Equal(t, "DAXINDEX", d.NormalizeSymbol("DAX INDEX"))
	assert.Equal(t, "NASDAQ100", d.NormalizeSymbol("NAS100"))
	assert.Equal(t, "XAUUSD", d.NormalizeSymbol("gold"))

	// Idempotent: a normalized symbol normalizes to itself.
	once := d.NormalizeSymbol("DAX INDEX")
	assert.Equal(t, once, d.NormalizeSymbol(once))
}

func TestNumbersClose(t *testing.T) {
	t.Parallel()

	assert.True(t, NumbersClose(0, 0.4))      // within absolute tolerance
	assert.True(t, NumbersClose(1000, 1004))  // within 0.5% relative
	assert.False(t, NumbersClose(1000, 1010)) // ~1% apart
	assert.True(t, NumbersClose(0, 0))
	assert.True(t, NumbersClose(-500, -500))
	assert.False(t, NumbersClose(0, 0.6))
}

func TestTimestampsClose(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC)
	assert.True(t, TimestampsClose(base, base.Add(15*time.Minute)))
	assert.True(t, TimestampsClose(base.Add(14*time.Minute), base))
	assert.False(t, TimestampsClose(base, base.Add(16*time.Minute)))
}

func TestIsDuplicateSymbolGate(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	closed := time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)

	a := FieldsFromNormalized(baseTrade(closed))
	other := baseTrade(closed)
	other.Symbol = "ETHUSDT"
	b := FieldsFromNormalized(other)

	verdict := d.IsDuplicate(a, b, false)
	assert.False(t, verdict.IsDuplicate)
	assert.Empty(t, verdict.Reasons)

	// With the gate relaxed every other field still matches.
	verdict = d.IsDuplicate(a, b, true)
	assert.True(t, verdict.IsDuplicate)
}

func TestIsDuplicateIdenticalTrades(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	closed := time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)

	a := FieldsFromNormalized(baseTrade(closed))
	b := FieldsFromNormalized(baseTrade(closed))

	verdict := d.IsDuplicate(a, b, false)
	assert.True(t, verdict.IsDuplicate)
	assert.InDelta(t, 1.0, verdict.MatchScore, 1e-9)
	assert.GreaterOrEqual(t, len(verdict.Reasons), MinMatchedFields)
	assert.Contains(t, verdict.Reasons, "opened_at")
	assert.Contains(t, verdict.Reasons, "profit_loss")
}

func TestIsDuplicateSingleSharedFieldIsNotEnough(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	closed := time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)

	a := baseTrade(closed)
	b := baseTrade(closed.Add(48 * time.Hour))
	b.EntryPrice = 99999
	b.ExitPrice = 12345
	b.PositionSize = 7
	b.Side = models.SideShort
	b.RecalculateDerived()

	verdict := d.IsDuplicate(FieldsFromNormalized(a), FieldsFromNormalized(b), false)
	assert.False(t, verdict.IsDuplicate)
}

func TestCalendarDayFallbackOnlyWithoutTimestampMatch(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	day := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

	pl := 500.0
	a := TradeFields{Symbol: "BTCUSDT", CreatedAt: timePtr(day.Add(9 * time.Hour)), ProfitLoss: &pl}
	b := TradeFields{Symbol: "BTCUSDT", CreatedAt: timePtr(day.Add(20 * time.Hour)), ProfitLoss: &pl}

	verdict := d.IsDuplicate(a, b, false)
	assert.True(t, verdict.IsDuplicate)
	assert.Equal(t, []string{"created_at", "profit_loss"}, verdict.Reasons)
}

func TestCheckForDuplicatesAgainstHistory(t *testing.T) {
	t.Parallel()

	closed := time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)
	existing := persistedFrom(7, baseTrade(closed))
	d := newTestDetector(existing)

	batch := []models.NormalizedTrade{baseTrade(closed)}
	flagged, err := d.CheckForDuplicates(context.Background(), batch, 1)
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	verdict := flagged[0]
	assert.True(t, verdict.IsDuplicate)
	require.NotNil(t, verdict.MatchedTrade)
	assert.Equal(t, models.MatchSourceHistory, verdict.MatchedTrade.Source)
	assert.Equal(t, int64(7), verdict.MatchedTrade.TradeID)
}

func TestCheckForDuplicatesFirstMatchWinsInStoreOrder(t *testing.T) {
	t.Parallel()

	closed := time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)
	first := persistedFrom(3, baseTrade(closed))
	second := persistedFrom(9, baseTrade(closed))
	d := newTestDetector(first, second)

	flagged, err := d.CheckForDuplicates(context.Background(), []models.NormalizedTrade{baseTrade(closed)}, 1)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, int64(3), flagged[0].MatchedTrade.TradeID)
}

func TestCheckForDuplicatesWithinBatchFlagsLaterIndex(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	closed := time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)

	distinct := func(symbol string, offset time.Duration) models.NormalizedTrade {
		tr := baseTrade(closed.Add(offset))
		tr.Symbol = symbol
		tr.EntryPrice += float64(offset / time.Minute)
		tr.RecalculateDerived()
		return tr
	}

	batch := []models.NormalizedTrade{
		baseTrade(closed), // 0
		distinct("ETHUSDT", 24 * time.Hour),
		distinct("SOLUSDT", 48 * time.Hour),
		baseTrade(closed), // 3, duplicates index 0
	}

	flagged, err := d.CheckForDuplicates(context.Background(), batch, 1)
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	verdict, ok := flagged[3]
	require.True(t, ok, "the later index must be flagged, not the earlier one")
	require.NotNil(t, verdict.MatchedTrade)
	assert.Equal(t, models.MatchSourceCurrentBatch, verdict.MatchedTrade.Source)
	assert.Equal(t, 0, verdict.MatchedTrade.BatchIndex)
}

func TestCheckForDuplicatesCleanBatch(t *testing.T) {
	t.Parallel()

	d := newTestDetector()
	closed := time.Date(2026, 2, 27, 14, 0, 0, 0, time.UTC)

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT"}
	batch := make([]models.NormalizedTrade, 0, len(symbols))
	for i, s := range symbols {
		tr := baseTrade(closed.Add(time.Duration(i) * 24 * time.Hour))
		tr.Symbol = s
		tr.EntryPrice += float64(i * 1000)
		tr.ExitPrice += float64(i * 1000)
		tr.ProfitLoss += float64(i * 50)
		tr.RecalculateDerived()
		batch = append(batch, tr)
	}

	flagged, err := d.CheckForDuplicates(context.Background(), batch, 1)
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestCheckForDuplicatesStoreError(t *testing.T) {
	t.Parallel()

	d := NewDuplicateDetector(DefaultDetectorConfig(), &fakeTradeFetcher{err: errors.New("db closed")})
	_, err := d.CheckForDuplicates(context.Background(), []models.NormalizedTrade{baseTrade(time.Now())}, 1)
	assert.Error(t, err)
}
