// backend/src/services/analytics_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/models"
	"github.com/username/tradevisor/backend/src/processors"
	"github.com/username/tradevisor/backend/src/utils"
)

const (
	ckPortfolioMetrics = "agg_portfolio_metrics_user_%d"
	ckPortfolioReturns = "agg_portfolio_returns_user_%d_range_%s"
	ckTopPerformers    = "agg_top_performers_user_%d_limit_%d"
	ckEquityDrawdown   = "agg_equity_drawdown_user_%d"
)

type analyticsServiceImpl struct {
	store       TradeStore
	reportCache *cache.Cache
}

func NewAnalyticsService(store TradeStore, reportCache *cache.Cache) AnalyticsService {
	return &analyticsServiceImpl{store: store, reportCache: reportCache}
}

// GetPortfolioMetrics aggregates value and P&L across the user's holdings.
// Realized P&L comes from the trade ledger, not the holdings.
func (s *analyticsServiceImpl) GetPortfolioMetrics(ctx context.Context, userID int64) (*models.PortfolioMetrics, error) {
	cacheKey := fmt.Sprintf(ckPortfolioMetrics, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.PortfolioMetrics), nil
	}

	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving holdings: %w", err)
	}
	trades, err := s.store.ListTrades(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving trades: %w", err)
	}

	metrics := processors.CalculatePortfolioValue(holdings)
	for _, t := range trades {
		metrics.RealizedPnL += t.ProfitLoss
	}
	metrics.TotalPnL = metrics.UnrealizedPnL + metrics.RealizedPnL
	if metrics.TotalCostBasis != 0 {
		metrics.TotalROI = utils.RoundFloat(metrics.TotalPnL/metrics.TotalCostBasis*100, 2)
	}

	s.reportCache.Set(cacheKey, &metrics, DefaultCacheExpiration)
	return &metrics, nil
}

func (s *analyticsServiceImpl) GetPortfolioReturns(ctx context.Context, userID int64, rng models.TimeRange) (*models.PortfolioReturns, error) {
	cacheKey := fmt.Sprintf(ckPortfolioReturns, userID, rng)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.PortfolioReturns), nil
	}

	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving holdings: %w", err)
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving transactions: %w", err)
	}

	currentValue := 0.0
	for _, h := range holdings {
		currentValue += h.MarketValue()
	}

	returns := processors.CalculatePortfolioReturns(rng, currentValue, txs, time.Now())
	logger.L.Debug("Computed portfolio returns", "userID", userID, "range", rng,
		"twr", returns.TimeWeightedPct, "irrDefined", returns.InternalRateOfReturn != nil)

	s.reportCache.Set(cacheKey, &returns, DefaultCacheExpiration)
	return &returns, nil
}

func (s *analyticsServiceImpl) GetTopPerformers(ctx context.Context, userID int64, limit int) (*models.TopPerformers, error) {
	cacheKey := fmt.Sprintf(ckTopPerformers, userID, limit)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.TopPerformers), nil
	}

	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving holdings: %w", err)
	}
	performers := processors.FindTopPerformers(holdings, limit)

	s.reportCache.Set(cacheKey, &performers, DefaultCacheExpiration)
	return &performers, nil
}

// GetEquityDrawdown builds the user's equity curve from cash flows and
// realized trade P&L in close order, then annotates it with drawdown from the
// running peak.
func (s *analyticsServiceImpl) GetEquityDrawdown(ctx context.Context, userID int64) ([]models.DrawdownPoint, error) {
	cacheKey := fmt.Sprintf(ckEquityDrawdown, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.DrawdownPoint), nil
	}

	trades, err := s.store.ListTrades(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving trades: %w", err)
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving transactions: %w", err)
	}

	type equityEvent struct {
		date   time.Time
		amount float64
	}
	events := make([]equityEvent, 0, len(trades)+len(txs))
	for _, tx := range txs {
		if tx.IsCashFlow() {
			events = append(events, equityEvent{date: tx.Date, amount: tx.SignedAmount()})
		}
	}
	for _, t := range trades {
		events = append(events, equityEvent{date: t.ClosedAt, amount: t.ProfitLoss})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].date.Before(events[j].date) })

	points := make([]models.ValuePoint, 0, len(events))
	running := 0.0
	for _, e := range events {
		running += e.amount
		points = append(points, models.ValuePoint{Date: e.date, Value: running})
	}
	series := processors.DrawdownSeries(points)

	s.reportCache.Set(cacheKey, series, DefaultCacheExpiration)
	return series, nil
}

func (s *analyticsServiceImpl) InvalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckPortfolioMetrics, userID))
	s.reportCache.Delete(fmt.Sprintf(ckEquityDrawdown, userID))
	for _, rng := range []models.TimeRange{
		models.Range1H, models.Range1D, models.Range1W, models.Range1M,
		models.Range6M, models.Range12M, models.RangeYTD, models.RangeAll,
	} {
		s.reportCache.Delete(fmt.Sprintf(ckPortfolioReturns, userID, rng))
	}
	prefix := fmt.Sprintf("agg_top_performers_user_%d_", userID)
	for key := range s.reportCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reportCache.Delete(key)
		}
	}
}
