// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/username/tradevisor/backend/src/models"
)

// UploadResult is the outcome of one reconciliation pass over an uploaded
// file. Trades holds every mapped trade in batch order; Duplicates maps batch
// indices to their verdicts so the review UI can let the user keep or remove
// them. InsertedCount counts the trades that reached the store.
type UploadResult struct {
	BatchID          string                          `json:"batch_id"`
	Format           models.BrokerFormat             `json:"format"`
	Trades           []models.NormalizedTrade        `json:"trades"`
	Duplicates       map[int]models.DuplicateVerdict `json:"duplicates"`
	ValidationErrors []models.TradeValidationError   `json:"validation_errors,omitempty"`
	ParseErrors      []string                        `json:"parse_errors,omitempty"`
	Warnings         []string                        `json:"warnings,omitempty"`
	InsertedCount    int                             `json:"inserted_count"`
}

// Common service errors.
var (
	ErrParsingFailed = errors.New("csv parsing failed")
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeStore is the persistence boundary for trades and the portfolio ledger.
type TradeStore interface {
	// FetchRecentTrades returns the user's non-deleted trades created since
	// the given instant, in store order (id ascending).
	FetchRecentTrades(ctx context.Context, userID int64, since time.Time) ([]models.PersistedTrade, error)
	InsertTrades(ctx context.Context, userID int64, trades []models.NormalizedTrade, batchID string) (int, error)
	ListTrades(ctx context.Context, userID int64) ([]models.PersistedTrade, error)
	SoftDeleteTrade(ctx context.Context, userID, tradeID int64) error
	RecordUpload(ctx context.Context, userID int64, batchID, filename string, filesize int64, tradeCount int) error

	ListHoldings(ctx context.Context, userID int64) ([]models.PortfolioHolding, error)
	ListTransactions(ctx context.Context, userID int64) ([]models.PortfolioTransaction, error)
}

// ReconciliationService turns raw uploads into deduplicated, persisted trades.
type ReconciliationService interface {
	ProcessUpload(ctx context.Context, fileReader io.Reader, userID int64, filename string, filesize int64) (*UploadResult, error)
	AddManualTrade(ctx context.Context, userID int64, trade models.NormalizedTrade) (*UploadResult, error)
	GetLatestUploadResult(userID int64) (*UploadResult, bool)
	InvalidateUserCache(userID int64)
}

// AnalyticsService computes portfolio-level performance from store data.
type AnalyticsService interface {
	GetPortfolioMetrics(ctx context.Context, userID int64) (*models.PortfolioMetrics, error)
	GetPortfolioReturns(ctx context.Context, userID int64, rng models.TimeRange) (*models.PortfolioReturns, error)
	GetTopPerformers(ctx context.Context, userID int64, limit int) (*models.TopPerformers, error)
	GetEquityDrawdown(ctx context.Context, userID int64) ([]models.DrawdownPoint, error)
	InvalidateUserCache(userID int64)
}
