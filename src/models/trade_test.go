package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecalculateDerived(t *testing.T) {
	t.Parallel()

	opened := time.Date(2026, 2, 26, 22, 30, 0, 0, time.UTC)
	tr := NormalizedTrade{
		Symbol:       "BTCUSDT",
		Side:         SideLong,
		EntryPrice:   40000,
		ExitPrice:    41000,
		PositionSize: 1,
		Leverage:     20,
		ProfitLoss:   1000,
		OpenedAt:     opened,
		ClosedAt:     opened.Add(26*time.Hour + 15*time.Minute),
	}
	tr.RecalculateDerived()

	assert.InDelta(t, 2000, tr.Margin, 1e-9)
	assert.InDelta(t, 50, tr.ROI, 1e-9)
	assert.Equal(t, 1, tr.DurationDays)
	assert.Equal(t, 2, tr.DurationHours)
	assert.Equal(t, 15, tr.DurationMinutes)
}

func TestRecalculateDerivedZeroLeverage(t *testing.T) {
	t.Parallel()

	tr := NormalizedTrade{EntryPrice: 100, PositionSize: 2, ProfitLoss: 10}
	tr.RecalculateDerived()

	assert.InDelta(t, 200, tr.Margin, 1e-9) // zero leverage treated as 1x
	assert.InDelta(t, 5, tr.ROI, 1e-9)
}

func TestRecalculateDerivedZeroMargin(t *testing.T) {
	t.Parallel()

	tr := NormalizedTrade{ProfitLoss: 10, ROI: 777}
	tr.RecalculateDerived()
	assert.Zero(t, tr.ROI)
}

func TestRecalculateDerivedNegativeDurationClamped(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tr := NormalizedTrade{EntryPrice: 1, PositionSize: 1, OpenedAt: now, ClosedAt: now.Add(-time.Hour)}
	tr.RecalculateDerived()

	assert.Zero(t, tr.DurationDays)
	assert.Zero(t, tr.DurationHours)
	assert.Zero(t, tr.DurationMinutes)
}

func TestPeriodOfDayBuckets(t *testing.T) {
	t.Parallel()

	closeAt := func(hour int) NormalizedTrade {
		tr := NormalizedTrade{ClosedAt: time.Date(2026, 2, 27, hour, 0, 0, 0, time.UTC)}
		tr.RecalculateDerived()
		return tr
	}

	assert.Equal(t, PeriodMorning, closeAt(5).PeriodOfDay)
	assert.Equal(t, PeriodMorning, closeAt(11).PeriodOfDay)
	assert.Equal(t, PeriodAfternoon, closeAt(12).PeriodOfDay)
	assert.Equal(t, PeriodAfternoon, closeAt(17).PeriodOfDay)
	assert.Equal(t, PeriodNight, closeAt(18).PeriodOfDay)
	assert.Equal(t, PeriodNight, closeAt(2).PeriodOfDay)
}

func TestParseTimeRange(t *testing.T) {
	t.Parallel()

	rng, ok := ParseTimeRange("ytd")
	assert.True(t, ok)
	assert.Equal(t, RangeYTD, rng)

	rng, ok = ParseTimeRange("1M")
	assert.True(t, ok)
	assert.Equal(t, Range1M, rng)

	_, ok = ParseTimeRange("")
	assert.False(t, ok)
	_, ok = ParseTimeRange("2Y")
	assert.False(t, ok)
}

func TestSignedAmount(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100, PortfolioTransaction{Type: TxDeposit, Value: 100}.SignedAmount(), 1e-9)
	assert.InDelta(t, -100, PortfolioTransaction{Type: TxWithdrawal, Value: 100}.SignedAmount(), 1e-9)
	assert.InDelta(t, -100, PortfolioTransaction{Type: TxTransferOut, Value: 100}.SignedAmount(), 1e-9)
	assert.True(t, PortfolioTransaction{Type: TxTransferIn}.IsCashFlow())
	assert.False(t, PortfolioTransaction{Type: TxBuy}.IsCashFlow())
}
