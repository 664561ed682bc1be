// backend/src/handlers/portfolio_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/models"
	"github.com/username/tradevisor/backend/src/services"
	"github.com/username/tradevisor/backend/src/utils"
)

const defaultTopPerformerLimit = 3

type PortfolioHandler struct {
	analyticsService services.AnalyticsService
}

func NewPortfolioHandler(analyticsService services.AnalyticsService) *PortfolioHandler {
	return &PortfolioHandler{
		analyticsService: analyticsService,
	}
}

func (h *PortfolioHandler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	logger.L.Info("Handling GetPortfolioMetrics", "userID", userID)

	metrics, err := h.analyticsService.GetPortfolioMetrics(r.Context(), userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving portfolio metrics: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics)
}

func (h *PortfolioHandler) HandleGetReturns(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	rangeStr := r.URL.Query().Get("range")
	if rangeStr == "" {
		rangeStr = string(models.RangeAll)
	}
	rng, ok := models.ParseTimeRange(rangeStr)
	if !ok {
		utils.SendJSONError(w, fmt.Sprintf("Invalid range %q", rangeStr), http.StatusBadRequest)
		return
	}
	logger.L.Info("Handling GetPortfolioReturns", "userID", userID, "range", rng)

	returns, err := h.analyticsService.GetPortfolioReturns(r.Context(), userID, rng)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving portfolio returns: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(returns)
}

func (h *PortfolioHandler) HandleGetTopPerformers(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	limit := defaultTopPerformerLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > 50 {
			utils.SendJSONError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	performers, err := h.analyticsService.GetTopPerformers(r.Context(), userID, limit)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving top performers: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(performers)
}

func (h *PortfolioHandler) HandleGetDrawdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	series, err := h.analyticsService.GetEquityDrawdown(r.Context(), userID)
	if err != nil {
		logger.L.Error("Failed to get equity drawdown", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve drawdown data", http.StatusInternalServerError)
		return
	}
	if series == nil {
		series = []models.DrawdownPoint{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(series)
}
