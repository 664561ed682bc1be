package models

import (
	"strings"
	"time"
)

// CashFlow is a deposit or withdrawal event that changes portfolio value
// independent of market movement. Amount is signed: positive = inflow.
// The value-before/value-after pair brackets the flow so sub-period returns
// can be chained across it.
type CashFlow struct {
	Date                 time.Time `json:"date"`
	Amount               float64   `json:"amount"`
	PortfolioValueBefore float64   `json:"portfolio_value_before"`
	PortfolioValueAfter  float64   `json:"portfolio_value_after"`
}

// PortfolioHolding is a single open position as reported by the store.
type PortfolioHolding struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	CostBasis    float64 `json:"cost_basis"`
	CurrentPrice float64 `json:"current_price"`
}

// MarketValue returns quantity * current price.
func (h PortfolioHolding) MarketValue() float64 {
	return h.Quantity * h.CurrentPrice
}

// PortfolioMetrics aggregates value and P&L across all holdings.
// RealizedPnL comes from the trade ledger, not from the holdings themselves.
type PortfolioMetrics struct {
	TotalValue     float64 `json:"total_value"`
	TotalCostBasis float64 `json:"total_cost_basis"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	UnrealizedROI  float64 `json:"unrealized_roi"`
	RealizedPnL    float64 `json:"realized_pnl"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalROI       float64 `json:"total_roi"`
}

// Portfolio transaction types. Only the cash types move money in or out of
// the portfolio and participate in cash-flow accounting.
const (
	TxDeposit     = "deposit"
	TxWithdrawal  = "withdrawal"
	TxTransferIn  = "transfer_in"
	TxTransferOut = "transfer_out"
	TxBuy         = "buy"
	TxSell        = "sell"
)

// PortfolioTransaction is one ledger entry as reported by the store.
type PortfolioTransaction struct {
	Date     time.Time `json:"date"`
	Type     string    `json:"type"`
	Symbol   string    `json:"symbol,omitempty"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Value    float64   `json:"value"`
}

// IsCashFlow reports whether the transaction alters portfolio value
// independent of market movement.
func (tx PortfolioTransaction) IsCashFlow() bool {
	switch tx.Type {
	case TxDeposit, TxWithdrawal, TxTransferIn, TxTransferOut:
		return true
	}
	return false
}

// SignedAmount is the cash-flow amount with inflows positive.
func (tx PortfolioTransaction) SignedAmount() float64 {
	switch tx.Type {
	case TxWithdrawal, TxTransferOut:
		return -tx.Value
	}
	return tx.Value
}

// TimeRange is an enumerated reporting window resolved to a concrete start
// instant relative to "now".
type TimeRange string

const (
	Range1H  TimeRange = "1H"
	Range1D  TimeRange = "1D"
	Range1W  TimeRange = "1W"
	Range1M  TimeRange = "1M"
	Range6M  TimeRange = "6M"
	Range12M TimeRange = "12M"
	RangeYTD TimeRange = "YTD"
	RangeAll TimeRange = "All"
)

// ParseTimeRange resolves a query-string value to a known range. The match is
// case-insensitive; an empty or unknown value reports false.
func ParseTimeRange(s string) (TimeRange, bool) {
	for _, r := range []TimeRange{Range1H, Range1D, Range1W, Range1M, Range6M, Range12M, RangeYTD, RangeAll} {
		if strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	return "", false
}

// PortfolioReturns bundles the three return measures over one range.
// InternalRateOfReturn is nil when Newton-Raphson did not converge: "IRR
// undefined" is distinct from 0% and must not be substituted with a default.
type PortfolioReturns struct {
	PriceReturnPct       float64  `json:"price_return_pct"`
	PriceReturnAmount    float64  `json:"price_return_amount"`
	TimeWeightedPct      float64  `json:"time_weighted_pct"`
	InternalRateOfReturn *float64 `json:"internal_rate_of_return"`
	StartValue           float64  `json:"start_value"`
	EndValue             float64  `json:"end_value"`
}

// HoldingPerformance is one holding's return for the top-performer report.
type HoldingPerformance struct {
	Symbol    string  `json:"symbol"`
	ReturnPct float64 `json:"return_pct"`
	Value     float64 `json:"value"`
}

// TopPerformers holds the best and worst holdings by return. Worst is in
// ascending-severity order (worst first).
type TopPerformers struct {
	Best  []HoldingPerformance `json:"best"`
	Worst []HoldingPerformance `json:"worst"`
}

// ValuePoint is one point of a portfolio value timeline.
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DrawdownPoint annotates a value point with its drawdown from the running peak.
type DrawdownPoint struct {
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	DrawdownPct float64   `json:"drawdown_pct"`
}
