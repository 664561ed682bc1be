// backend/src/handlers/trade_handler.go
package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/models"
	"github.com/username/tradevisor/backend/src/security/validation"
	"github.com/username/tradevisor/backend/src/services"
	"github.com/username/tradevisor/backend/src/utils"
)

var exportHeader = []string{
	"symbol", "side", "entry_price", "exit_price", "position_size", "leverage",
	"margin", "funding_fee", "trading_fee", "opened_at", "closed_at",
	"profit_loss", "roi", "duration_days", "duration_hours", "duration_minutes",
	"period_of_day", "broker", "setup", "notes",
}

type TradeHandler struct {
	store                 services.TradeStore
	reconciliationService services.ReconciliationService
	analyticsService      services.AnalyticsService
}

func NewTradeHandler(store services.TradeStore, reconciliation services.ReconciliationService, analytics services.AnalyticsService) *TradeHandler {
	return &TradeHandler{
		store:                 store,
		reconciliationService: reconciliation,
		analyticsService:      analytics,
	}
}

func (h *TradeHandler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	trades, err := h.store.ListTrades(r.Context(), userID)
	if err != nil {
		logger.L.Error("Error retrieving trades", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving trades: %v", err), http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []models.PersistedTrade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

func (h *TradeHandler) HandleAddManualTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var trade models.NormalizedTrade
	if err := json.NewDecoder(r.Body).Decode(&trade); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.reconciliationService.AddManualTrade(r.Context(), userID, trade)
	if err != nil {
		if errors.Is(err, validation.ErrValidationFailed) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to add manual trade", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to add trade", http.StatusInternalServerError)
		return
	}
	h.analyticsService.InvalidateUserCache(userID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

func (h *TradeHandler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	tradeIDStr := chi.URLParam(r, "id")
	tradeID, err := strconv.ParseInt(tradeIDStr, 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade ID", http.StatusBadRequest)
		return
	}

	if err := h.store.SoftDeleteTrade(r.Context(), userID, tradeID); err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete trade", "userID", userID, "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Failed to delete trade", http.StatusInternalServerError)
		return
	}
	h.reconciliationService.InvalidateUserCache(userID)
	h.analyticsService.InvalidateUserCache(userID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "message": "Trade deleted"})
}

// HandleExportTrades streams the user's trades as CSV in the application's
// own export format, so a download can later be re-imported losslessly.
func (h *TradeHandler) HandleExportTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	trades, err := h.store.ListTrades(r.Context(), userID)
	if err != nil {
		logger.L.Error("Error retrieving trades for export", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to export trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=trades_%s.csv", time.Now().Format("2006-01-02")))

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		logger.L.Error("Error writing CSV export header", "userID", userID, "error", err)
		return
	}
	for _, t := range trades {
		days := t.DurationMinutes / (24 * 60)
		hours := (t.DurationMinutes / 60) % 24
		minutes := t.DurationMinutes % 60
		record := []string{
			validation.SanitizeForFormulaInjection(t.Symbol),
			t.Side,
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.PositionSize, 'f', -1, 64),
			strconv.FormatFloat(t.Leverage, 'f', -1, 64),
			strconv.FormatFloat(t.Margin, 'f', -1, 64),
			strconv.FormatFloat(t.FundingFee, 'f', -1, 64),
			strconv.FormatFloat(t.TradingFee, 'f', -1, 64),
			t.OpenedAt.Format(time.RFC3339),
			t.ClosedAt.Format(time.RFC3339),
			strconv.FormatFloat(t.ProfitLoss, 'f', -1, 64),
			strconv.FormatFloat(t.ROI, 'f', -1, 64),
			strconv.Itoa(days),
			strconv.Itoa(hours),
			strconv.Itoa(minutes),
			t.PeriodOfDay,
			validation.SanitizeForFormulaInjection(t.Broker),
			validation.SanitizeForFormulaInjection(t.Setup),
			validation.SanitizeForFormulaInjection(t.Notes),
		}
		if err := writer.Write(record); err != nil {
			logger.L.Error("Error writing CSV export record", "userID", userID, "error", err)
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.L.Error("Error flushing CSV export", "userID", userID, "error", err)
	}
}
