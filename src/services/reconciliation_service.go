// backend/src/services/reconciliation_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/models"
	"github.com/username/tradevisor/backend/src/parsers"
	"github.com/username/tradevisor/backend/src/processors"
	"github.com/username/tradevisor/backend/src/security/validation"
)

const (
	ckLatestUploadResult   = "res_latest_upload_user_%d"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reconciliationServiceImpl struct {
	normalizer     *parsers.Normalizer
	tradeProcessor *processors.TradeProcessor
	detector       *processors.DuplicateDetector
	store          TradeStore
	resultCache    *cache.Cache
}

func NewReconciliationService(
	normalizer *parsers.Normalizer,
	tradeProcessor *processors.TradeProcessor,
	detector *processors.DuplicateDetector,
	store TradeStore,
	resultCache *cache.Cache,
) ReconciliationService {
	return &reconciliationServiceImpl{
		normalizer:     normalizer,
		tradeProcessor: tradeProcessor,
		detector:       detector,
		store:          store,
		resultCache:    resultCache,
	}
}

// ProcessUpload runs one full reconciliation pass: parse, detect format, map,
// validate, enrich, score for duplicates, persist the accepted trades.
//
// A file in an unrecognized format is not an error: the result simply carries
// zero trades and the generic format tag, which the caller must treat as
// "format not recognized". Validation problems never block the whole upload
// either; they ride along row-indexed so the UI can show all of them at once.
func (s *reconciliationServiceImpl) ProcessUpload(ctx context.Context, fileReader io.Reader, userID int64, filename string, filesize int64) (*UploadResult, error) {
	start := time.Now()
	batchID := uuid.New().String()
	logger.L.Info("ProcessUpload START", "userID", userID, "batchID", batchID, "filename", filename)

	rows, headers, parseErrs := parsers.ParseCSV(fileReader)
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, parseErrs[0])
	}

	format := parsers.DetectBrokerFormat(headers)
	trades, warnings := s.normalizer.MapRowsToTrades(rows, format)
	logger.L.Info("Upload normalized", "userID", userID, "format", format, "rows", len(rows), "trades", len(trades))

	_, validationErrs := parsers.ValidateTrades(trades)
	trades = s.tradeProcessor.Process(trades)

	duplicates, err := s.detector.CheckForDuplicates(ctx, trades, userID)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	invalidRows := make(map[int]bool)
	for _, ve := range validationErrs {
		invalidRows[ve.Row] = true
	}
	accepted := make([]models.NormalizedTrade, 0, len(trades))
	for i, t := range trades {
		if _, dup := duplicates[i]; dup || invalidRows[i] {
			continue
		}
		accepted = append(accepted, t)
	}

	inserted := 0
	if len(accepted) > 0 {
		inserted, err = s.store.InsertTrades(ctx, userID, accepted, batchID)
		if err != nil {
			return nil, fmt.Errorf("error persisting trades: %w", err)
		}
	}
	if inserted > 0 {
		if err := s.store.RecordUpload(ctx, userID, batchID, filename, filesize, inserted); err != nil {
			logger.L.Error("Failed to record upload history", "userID", userID, "batchID", batchID, "error", err)
		}
	}

	result := &UploadResult{
		BatchID:          batchID,
		Format:           format,
		Trades:           trades,
		Duplicates:       duplicates,
		ValidationErrors: validationErrs,
		ParseErrors:      errorStrings(parseErrs),
		Warnings:         warnings,
		InsertedCount:    inserted,
	}
	s.resultCache.Set(fmt.Sprintf(ckLatestUploadResult, userID), result, DefaultCacheExpiration)

	logger.L.Info("ProcessUpload END", "userID", userID, "batchID", batchID,
		"inserted", inserted, "duplicates", len(duplicates), "duration", time.Since(start))
	return result, nil
}

// AddManualTrade validates and persists a single user-entered trade, running
// it through the same duplicate scoring as an upload of one.
func (s *reconciliationServiceImpl) AddManualTrade(ctx context.Context, userID int64, trade models.NormalizedTrade) (*UploadResult, error) {
	if err := validation.ValidateSymbol(trade.Symbol); err != nil {
		return nil, err
	}
	if err := validation.ValidateSide(trade.Side); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveFloat(trade.EntryPrice, "entry_price"); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveFloat(trade.ExitPrice, "exit_price"); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositiveFloat(trade.PositionSize, "position_size"); err != nil {
		return nil, err
	}
	if err := validation.ValidateDateRange(trade.OpenedAt, trade.ClosedAt); err != nil {
		return nil, err
	}
	if err := validation.ValidateStringMaxLength(trade.Notes, validation.MaxNotesLength, "notes"); err != nil {
		return nil, err
	}
	for field, value := range map[string]string{"setup": trade.Setup, "notes": trade.Notes} {
		if err := validation.CheckXSSPatterns(value, field, trade.Symbol); err != nil {
			return nil, err
		}
	}

	batchID := uuid.New().String()
	trades := s.tradeProcessor.Process([]models.NormalizedTrade{trade})

	duplicates, err := s.detector.CheckForDuplicates(ctx, trades, userID)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	inserted := 0
	if _, dup := duplicates[0]; !dup {
		inserted, err = s.store.InsertTrades(ctx, userID, trades, batchID)
		if err != nil {
			return nil, fmt.Errorf("error persisting trade: %w", err)
		}
	}

	result := &UploadResult{
		BatchID:       batchID,
		Format:        models.FormatAppExport,
		Trades:        trades,
		Duplicates:    duplicates,
		InsertedCount: inserted,
	}
	s.InvalidateUserCache(userID)
	return result, nil
}

func (s *reconciliationServiceImpl) GetLatestUploadResult(userID int64) (*UploadResult, bool) {
	if cached, found := s.resultCache.Get(fmt.Sprintf(ckLatestUploadResult, userID)); found {
		return cached.(*UploadResult), true
	}
	return nil, false
}

func (s *reconciliationServiceImpl) InvalidateUserCache(userID int64) {
	s.resultCache.Delete(fmt.Sprintf(ckLatestUploadResult, userID))
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
