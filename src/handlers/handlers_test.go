package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// fakeAnalyticsService returns canned values and records cache invalidations.
type fakeAnalyticsService struct {
	metrics     models.PortfolioMetrics
	returns     models.PortfolioReturns
	performers  models.TopPerformers
	drawdown    []models.DrawdownPoint
	lastRange   models.TimeRange
	lastLimit   int
	invalidated bool
}

func (f *fakeAnalyticsService) GetPortfolioMetrics(context.Context, int64) (*models.PortfolioMetrics, error) {
	return &f.metrics, nil
}

func (f *fakeAnalyticsService) GetPortfolioReturns(_ context.Context, _ int64, rng models.TimeRange) (*models.PortfolioReturns, error) {
	f.lastRange = rng
	return &f.returns, nil
}

func (f *fakeAnalyticsService) GetTopPerformers(_ context.Context, _ int64, limit int) (*models.TopPerformers, error) {
	f.lastLimit = limit
	return &f.performers, nil
}

func (f *fakeAnalyticsService) GetEquityDrawdown(context.Context, int64) ([]models.DrawdownPoint, error) {
	return f.drawdown, nil
}

func (f *fakeAnalyticsService) InvalidateUserCache(int64) { f.invalidated = true }

func serveWithUser(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	UserContextMiddleware(handler).ServeHTTP(rec, req)
	return rec
}

func TestUserContextMiddleware(t *testing.T) {
	var gotUserID int64
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	req.Header.Set("X-User-ID", "42")
	rec := httptest.NewRecorder()
	UserContextMiddleware(inner).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gotUserID)
}

func TestUserContextMiddlewareRejectsBadIdentity(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a valid user")
	})

	for _, header := range []string{"", "abc", "-1", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
		if header != "" {
			req.Header.Set("X-User-ID", header)
		}
		rec := httptest.NewRecorder()
		UserContextMiddleware(inner).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestHandleGetReturnsParsesRange(t *testing.T) {
	svc := &fakeAnalyticsService{returns: models.PortfolioReturns{PriceReturnPct: 12.5}}
	h := NewPortfolioHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/returns?range=1m", nil)
	req.Header.Set("X-User-ID", "1")
	rec := serveWithUser(h.HandleGetReturns, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Range1M, svc.lastRange)

	var body models.PortfolioReturns
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12.5, body.PriceReturnPct)
}

func TestHandleGetReturnsDefaultsToAll(t *testing.T) {
	svc := &fakeAnalyticsService{}
	h := NewPortfolioHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/returns", nil)
	req.Header.Set("X-User-ID", "1")
	rec := serveWithUser(h.HandleGetReturns, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RangeAll, svc.lastRange)
}

func TestHandleGetReturnsRejectsUnknownRange(t *testing.T) {
	h := NewPortfolioHandler(&fakeAnalyticsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/returns?range=2y", nil)
	req.Header.Set("X-User-ID", "1")
	rec := serveWithUser(h.HandleGetReturns, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid range")
}

func TestHandleGetTopPerformersLimit(t *testing.T) {
	svc := &fakeAnalyticsService{}
	h := NewPortfolioHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/top-performers?limit=5", nil)
	req.Header.Set("X-User-ID", "1")
	rec := serveWithUser(h.HandleGetTopPerformers, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.lastLimit)

	// No limit parameter falls back to the default.
	req = httptest.NewRequest(http.MethodGet, "/api/portfolio/top-performers", nil)
	req.Header.Set("X-User-ID", "1")
	rec = serveWithUser(h.HandleGetTopPerformers, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultTopPerformerLimit, svc.lastLimit)

	for _, bad := range []string{"0", "-3", "51", "abc"} {
		req = httptest.NewRequest(http.MethodGet, "/api/portfolio/top-performers?limit="+bad, nil)
		req.Header.Set("X-User-ID", "1")
		rec = serveWithUser(h.HandleGetTopPerformers, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit %q", bad)
	}
}

func TestHandleGetDrawdownEmptySeriesIsJSONArray(t *testing.T) {
	h := NewPortfolioHandler(&fakeAnalyticsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/drawdown", nil)
	req.Header.Set("X-User-ID", "1")
	rec := serveWithUser(h.HandleGetDrawdown, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
