// backend/src/handlers/price_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/security/validation"
	"github.com/username/investfolio/backend/src/services"
	"github.com/username/investfolio/backend/src/utils"
)

type PriceHandler struct {
	priceService services.PriceService
}

func NewPriceHandler(priceService services.PriceService) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
	}
}

func (h *PriceHandler) HandleGetCurrentPrice(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	instrument := r.PathValue("instrument")
	if err := validation.ValidateInstrument(instrument); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Debug("Handling current price request", "userID", userID, "instrument", instrument)

	quote := h.priceService.GetCurrentPrice(instrument)
	if !quote.IsValid() {
		msg := quote.Error
		if msg == "" {
			msg = "Price unavailable from all sources"
		}
		utils.SendJSONError(w, msg, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		logger.L.Error("Error encoding price quote to JSON", "instrument", instrument, "error", err)
	}
}

func (h *PriceHandler) HandleGetHistoricalPrice(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	instrument := r.PathValue("instrument")
	if err := validation.ValidateInstrument(instrument); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		utils.SendJSONError(w, "Date parameter required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	if utils.ParseDate(dateStr).IsZero() {
		utils.SendJSONError(w, "Invalid date format (use YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	logger.L.Debug("Handling historical price request", "userID", userID, "instrument", instrument, "date", dateStr)

	quote := h.priceService.GetHistoricalPrice(instrument, dateStr)
	if !quote.IsValid() {
		msg := quote.Error
		if msg == "" {
			msg = "Price unavailable from all sources"
		}
		utils.SendJSONError(w, msg, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		logger.L.Error("Error encoding historical price quote to JSON", "instrument", instrument, "error", err)
	}
}
