// backend/src/handlers/portfolio_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/security/validation"
	"github.com/username/investfolio/backend/src/services"
	"github.com/username/investfolio/backend/src/utils"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioHandler(portfolioService services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

func (h *PortfolioHandler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling portfolio summary request with ETag support", "userID", userID)

	summary, err := h.portfolioService.GetPortfolioSummary(userID)
	if err != nil {
		logger.L.Error("Error retrieving portfolio summary", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving portfolio summary for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(summary)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for portfolio summary", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Debug("ETag match for portfolio summary", "userID", userID, "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		if clientETag != "" {
			logger.L.Debug("ETag mismatch", "userID", userID, "clientETags", clientETag, "serverETag", quotedETag)
		}
	} else {
		logger.L.Warn("Proceeding without ETag check due to ETag generation error or empty ETag", "userID", userID)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error encoding portfolio summary to JSON", "userID", userID, "error", err)
	}
}

func (h *PortfolioHandler) HandleGetPortfolioHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling portfolio history request", "userID", userID)

	series, err := h.portfolioService.GetMonthlyPortfolioValues(userID)
	if err != nil {
		logger.L.Error("Error retrieving portfolio history", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving portfolio history for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if series == nil {
		series = []models.MonthlyValuation{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(series); err != nil {
		logger.L.Error("Error encoding portfolio history to JSON", "userID", userID, "error", err)
	}
}

func (h *PortfolioHandler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	isin := r.PathValue("isin")
	if err := validation.ValidateInstrument(isin); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Debug("Handling position view request", "userID", userID, "isin", isin)

	view, err := h.portfolioService.GetPositionView(userID, isin)
	if err != nil {
		logger.L.Error("Error retrieving position view", "userID", userID, "isin", isin, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving position %s for userID %d: %v", isin, userID, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		logger.L.Error("Error encoding position view to JSON", "userID", userID, "isin", isin, "error", err)
	}
}

func (h *PortfolioHandler) HandleGetPositionHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	isin := r.PathValue("isin")
	if err := validation.ValidateInstrument(isin); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Debug("Handling position history request", "userID", userID, "isin", isin)

	series, err := h.portfolioService.GetMonthlyPositionValues(userID, isin)
	if err != nil {
		logger.L.Error("Error retrieving position history", "userID", userID, "isin", isin, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving position history %s for userID %d: %v", isin, userID, err), http.StatusInternalServerError)
		return
	}
	if series == nil {
		series = []models.MonthlyValuation{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(series); err != nil {
		logger.L.Error("Error encoding position history to JSON", "userID", userID, "isin", isin, "error", err)
	}
}
