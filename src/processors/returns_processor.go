// backend/src/processors/returns_processor.go
//
// Pure numeric functions over trade and cash-flow sequences. No state, no
// I/O: every call is independent given its inputs.
package processors

import (
	"math"
	"sort"
	"time"

	"github.com/username/tradevisor/backend/src/models"
)

// Newton-Raphson parameters for the IRR solver.
const (
	irrInitialRate    = 0.10
	irrMinRate        = -0.99 // a rate at or below -100% is meaningless
	irrMaxRate        = 10.0
	irrMaxIterations  = 100
	irrTolerance      = 1e-4
	irrDerivativeMin  = 1e-10
	hoursPerYear      = 24 * 365.25
	topPerformerLimit = 3
)

// rangeEpochFloor is the start instant for the "All" range.
var rangeEpochFloor = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// StartDateForRange resolves an enumerated window to a concrete start instant
// relative to now. Unknown ranges resolve like All.
func StartDateForRange(r models.TimeRange, now time.Time) time.Time {
	switch r {
	case models.Range1H:
		return now.Add(-time.Hour)
	case models.Range1D:
		return now.Add(-24 * time.Hour)
	case models.Range1W:
		return now.Add(-7 * 24 * time.Hour)
	case models.Range1M:
		return now.Add(-30 * 24 * time.Hour)
	case models.Range6M:
		return now.Add(-180 * 24 * time.Hour)
	case models.Range12M:
		return now.Add(-365 * 24 * time.Hour)
	case models.RangeYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return rangeEpochFloor
	}
}

// PriceReturn computes the simple price return. A zero start price yields
// (0, 0): trading data legitimately contains zero starting values and this is
// a guard, not an error.
func PriceReturn(startPrice, currentPrice float64) (pct, amount float64) {
	if startPrice == 0 {
		return 0, 0
	}
	amount = currentPrice - startPrice
	pct = amount / startPrice * 100
	return pct, amount
}

// TimeWeightedReturn chains sub-period returns across cash-flow boundaries and
// compounds them, expressed as a percentage. Removing the flows' direct effect
// is the point: a trader who deposits mid-period must not appear to have
// "grown" their return purely from the deposit.
//
// For each boundary, sub = (ending - beginning - flow) / beginning, where
// beginning is the previous boundary's after-value. Sub-periods with a
// non-positive beginning value are skipped.
func TimeWeightedReturn(flows []models.CashFlow) float64 {
	if len(flows) == 0 {
		return 0
	}
	sorted := make([]models.CashFlow, len(flows))
	copy(sorted, flows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	compounded := 1.0
	beginning := sorted[0].PortfolioValueBefore
	for _, f := range sorted {
		if beginning > 0 {
			sub := (f.PortfolioValueAfter - beginning - f.Amount) / beginning
			compounded *= 1 + sub
		}
		beginning = f.PortfolioValueAfter
	}
	return (compounded - 1) * 100
}

// InternalRateOfReturn solves for the money-weighted return: the discount rate
// at which the net present value of the flow sequence plus the terminal value
// is zero. Deposits are modeled as negative "investment" flows, the final
// value as a terminal positive flow, and each flow's date becomes elapsed
// years from the earliest flow.
//
// ok=false means the IRR is undefined for this cash-flow pattern (Newton-
// Raphson exhausted its iteration budget or the derivative underflowed).
// Callers must keep that distinct from a 0% return.
func InternalRateOfReturn(flows []models.CashFlow, finalValue float64, finalDate time.Time) (pct float64, ok bool) {
	if len(flows) == 0 {
		return 0, false
	}

	type irrFlow struct {
		years  float64
		amount float64
	}

	earliest := flows[0].Date
	for _, f := range flows[1:] {
		if f.Date.Before(earliest) {
			earliest = f.Date
		}
	}
	if finalDate.Before(earliest) {
		earliest = finalDate
	}

	all := make([]irrFlow, 0, len(flows)+1)
	for _, f := range flows {
		all = append(all, irrFlow{
			years:  f.Date.Sub(earliest).Hours() / hoursPerYear,
			amount: -f.Amount,
		})
	}
	all = append(all, irrFlow{
		years:  finalDate.Sub(earliest).Hours() / hoursPerYear,
		amount: finalValue,
	})

	rate := irrInitialRate
	for i := 0; i < irrMaxIterations; i++ {
		var npv, derivative float64
		for _, f := range all {
			discount := math.Pow(1+rate, f.years)
			npv += f.amount / discount
			derivative -= f.years * f.amount / (discount * (1 + rate))
		}
		if math.Abs(npv) < irrTolerance {
			return rate * 100, true
		}
		if math.Abs(derivative) < irrDerivativeMin {
			return 0, false
		}
		rate -= npv / derivative
		if rate < irrMinRate {
			rate = irrMinRate
		}
		if rate > irrMaxRate {
			rate = irrMaxRate
		}
	}
	return 0, false
}

// CalculatePortfolioValue sums market value and cost basis across holdings and
// derives the unrealized figures. RealizedPnL comes from a separate ledger and
// is filled in by the caller before the totals are derived there.
func CalculatePortfolioValue(holdings []models.PortfolioHolding) models.PortfolioMetrics {
	var m models.PortfolioMetrics
	for _, h := range holdings {
		m.TotalValue += h.MarketValue()
		m.TotalCostBasis += h.CostBasis
	}
	m.UnrealizedPnL = m.TotalValue - m.TotalCostBasis
	if m.TotalCostBasis != 0 {
		m.UnrealizedROI = m.UnrealizedPnL / m.TotalCostBasis * 100
	}
	m.TotalPnL = m.UnrealizedPnL + m.RealizedPnL
	m.TotalROI = m.UnrealizedROI
	return m
}

// CalculatePortfolioReturns filters the transaction ledger to the range,
// rebuilds the cash-flow timeline from the cash transaction types only
// (trades that do not move money in or out of the portfolio are excluded from
// cash-flow accounting) and composes the three return measures.
func CalculatePortfolioReturns(rng models.TimeRange, currentValue float64, txs []models.PortfolioTransaction, now time.Time) models.PortfolioReturns {
	start := StartDateForRange(rng, now)

	var cashTxs []models.PortfolioTransaction
	netFlows := 0.0
	for _, tx := range txs {
		if !tx.IsCashFlow() || tx.Date.Before(start) || tx.Date.After(now) {
			continue
		}
		cashTxs = append(cashTxs, tx)
		netFlows += tx.SignedAmount()
	}
	sort.Slice(cashTxs, func(i, j int) bool { return cashTxs[i].Date.Before(cashTxs[j].Date) })

	// The store only reports the current value, so the flow timeline is
	// reconstructed by chaining the contributed capital: interior boundaries
	// carry the flows, the terminal boundary carries the market P&L. The
	// range's baseline value is the net capital contributed within it.
	startValue := netFlows

	flows := make([]models.CashFlow, 0, len(cashTxs)+1)
	running := 0.0
	for _, tx := range cashTxs {
		amount := tx.SignedAmount()
		flows = append(flows, models.CashFlow{
			Date:                 tx.Date,
			Amount:               amount,
			PortfolioValueBefore: running,
			PortfolioValueAfter:  running + amount,
		})
		running += amount
	}
	flows = append(flows, models.CashFlow{
		Date:                 now,
		PortfolioValueBefore: currentValue,
		PortfolioValueAfter:  currentValue,
	})

	pct, amount := PriceReturn(startValue, currentValue)
	result := models.PortfolioReturns{
		PriceReturnPct:    pct,
		PriceReturnAmount: amount,
		TimeWeightedPct:   TimeWeightedReturn(flows),
		StartValue:        startValue,
		EndValue:          currentValue,
	}
	if irr, ok := InternalRateOfReturn(flows, currentValue, now); ok {
		result.InternalRateOfReturn = &irr
	}
	return result
}

// FindTopPerformers ranks holdings by return percentage. Best holds the top
// `limit` in descending order; Worst holds the bottom `limit` reversed to
// ascending-severity order, worst first. A zero cost basis counts as a 0%
// return.
func FindTopPerformers(holdings []models.PortfolioHolding, limit int) models.TopPerformers {
	if limit <= 0 {
		limit = topPerformerLimit
	}
	perf := make([]models.HoldingPerformance, 0, len(holdings))
	for _, h := range holdings {
		ret := 0.0
		if h.CostBasis != 0 {
			ret = (h.MarketValue() - h.CostBasis) / h.CostBasis * 100
		}
		perf = append(perf, models.HoldingPerformance{
			Symbol:    h.Symbol,
			ReturnPct: ret,
			Value:     h.MarketValue(),
		})
	}
	sort.SliceStable(perf, func(i, j int) bool { return perf[i].ReturnPct > perf[j].ReturnPct })

	best := make([]models.HoldingPerformance, 0, limit)
	for i := 0; i < len(perf) && i < limit; i++ {
		best = append(best, perf[i])
	}
	worst := make([]models.HoldingPerformance, 0, limit)
	for i := len(perf) - 1; i >= 0 && len(worst) < limit; i-- {
		worst = append(worst, perf[i])
	}
	return models.TopPerformers{Best: best, Worst: worst}
}

// DrawdownSeries annotates a value timeline with the percentage drawdown from
// the running peak. Points before the first positive value carry a 0 drawdown.
func DrawdownSeries(points []models.ValuePoint) []models.DrawdownPoint {
	out := make([]models.DrawdownPoint, 0, len(points))
	peak := 0.0
	for _, p := range points {
		if p.Value > peak {
			peak = p.Value
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Value - peak) / peak * 100
		}
		out = append(out, models.DrawdownPoint{Date: p.Date, Value: p.Value, DrawdownPct: dd})
	}
	return out
}
