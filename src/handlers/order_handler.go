// backend/src/handlers/order_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/security/validation"
	"github.com/username/investfolio/backend/src/services"
	"github.com/username/investfolio/backend/src/utils"
)

type OrderHandler struct {
	orderService services.OrderService
}

func NewOrderHandler(orderService services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) HandleGetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling list orders request", "userID", userID)

	orders, err := h.orderService.ListOrders(userID)
	if err != nil {
		logger.L.Error("Error retrieving orders", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving orders for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		logger.L.Error("Error encoding orders to JSON", "userID", userID, "error", err)
	}
}

func (h *OrderHandler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateOrderPayload(req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("Handling create order request", "userID", userID, "isin", req.ISIN)

	order, err := h.orderService.CreateOrder(userID, req)
	if err != nil {
		if errors.Is(err, services.ErrPriceUnavailable) {
			utils.SendJSONError(w, fmt.Sprintf("Unable to fetch price for ISIN %s", strings.ToUpper(strings.TrimSpace(req.ISIN))), http.StatusBadRequest)
			return
		}
		if errors.Is(err, services.ErrInvalidOrderPayload) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.L.Error("Error creating order", "userID", userID, "isin", req.ISIN, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Failed to create order: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(order); err != nil {
		logger.L.Error("Error encoding created order to JSON", "userID", userID, "error", err)
	}
}

func (h *OrderHandler) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	orderID := r.PathValue("id")
	if orderID == "" {
		utils.SendJSONError(w, "Missing order_id parameter", http.StatusBadRequest)
		return
	}
	logger.L.Info("Handling delete order request", "userID", userID, "orderID", orderID)

	if err := h.orderService.DeleteOrder(userID, orderID); err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			utils.SendJSONError(w, "Order not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Error deleting order", "userID", userID, "orderID", orderID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Failed to delete order: %v", err), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
