// backend/src/handlers/projection_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/services"
	"github.com/username/investfolio/backend/src/utils"
)

type ProjectionHandler struct {
	projectionService services.ProjectionService
	portfolioService  services.PortfolioService
}

func NewProjectionHandler(projectionService services.ProjectionService, portfolioService services.PortfolioService) *ProjectionHandler {
	return &ProjectionHandler{
		projectionService: projectionService,
		portfolioService:  portfolioService,
	}
}

// currentValueFor resolves the starting value for a user's projections.
// Users without any orders project from a 10k EUR example portfolio; a
// user whose portfolio genuinely values to zero projects from zero.
func (h *ProjectionHandler) currentValueFor(userID int) float64 {
	summary, err := h.portfolioService.GetPortfolioSummary(userID)
	if err != nil {
		logger.L.Warn("Falling back to default projection base value", "userID", userID, "error", err)
		return 10000
	}
	if summary.OrdersCount == 0 {
		return 10000
	}
	return summary.CurrentValue
}

func (h *ProjectionHandler) HandleGetProjections(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling default projections request", "userID", userID)

	params := h.projectionService.DefaultParams(h.currentValueFor(userID))
	summary := h.projectionService.GetProjectionSummary(params)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error encoding projections to JSON", "userID", userID, "error", err)
	}
}

func (h *ProjectionHandler) HandleCreateProjections(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	// An empty body means "project with the defaults".
	raw := map[string]interface{}{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	logger.L.Debug("Handling custom projections request", "userID", userID)

	defaults := h.projectionService.DefaultParams(h.currentValueFor(userID))
	params, err := h.projectionService.ValidateParams(raw, defaults)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	summary := h.projectionService.GetProjectionSummary(params)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error encoding projections to JSON", "userID", userID, "error", err)
	}
}
