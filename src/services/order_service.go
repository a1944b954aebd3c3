// backend/src/services/order_service.go
package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/model"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
)

type orderServiceImpl struct {
	db           *sql.DB
	priceService PriceService
	reports      ReportInvalidator
}

// NewOrderService creates the order recording service. Mutations invalidate
// the user's cached reports through the given invalidator.
func NewOrderService(db *sql.DB, priceService PriceService, reports ReportInvalidator) OrderService {
	return &orderServiceImpl{
		db:           db,
		priceService: priceService,
		reports:      reports,
	}
}

// CreateOrder persists a new order for the user. The payload is assumed
// structurally valid (the handler runs validation.ValidateOrderPayload);
// this method fills in whatever pricing the caller left out:
//   - neither price given: the order is priced from the providers, at the
//     requested date when one was given, falling back to the current quote.
//     The date the provider actually priced becomes the order date and the
//     asked-for date is kept as requestedDate.
//   - one of unit/total given: the other is derived from the quantity.
//   - both given: they must agree with the quantity within tolerance.
func (s *orderServiceImpl) CreateOrder(userID int, req models.CreateOrderRequest) (models.Order, error) {
	isin := strings.ToUpper(strings.TrimSpace(req.ISIN))

	orderDate := req.Date
	if orderDate == "" {
		orderDate = utils.FormatDate(utils.Today())
	}

	order := models.Order{
		ID:        uuid.NewString(),
		ISIN:      isin,
		Quantity:  req.Quantity,
		OrderDate: orderDate,
	}

	switch {
	case req.UnitPriceEUR == nil && req.TotalPriceEUR == nil:
		quote := s.resolveOrderQuote(isin, req.Date)
		if !quote.IsValid() {
			return models.Order{}, fmt.Errorf("%w for ISIN %s", ErrPriceUnavailable, isin)
		}
		order.UnitPriceEUR = *quote.Price
		order.TotalPriceEUR = utils.RoundFloat(req.Quantity*(*quote.Price), 2)
		order.PriceSource = quote.Source
		order.Venue = quote.Venue
		if req.Date != "" {
			order.RequestedDate = req.Date
		}
		if quote.Date != "" {
			order.OrderDate = quote.Date
		}

	case req.UnitPriceEUR != nil && req.TotalPriceEUR == nil:
		order.UnitPriceEUR = *req.UnitPriceEUR
		order.TotalPriceEUR = utils.RoundFloat(req.Quantity*(*req.UnitPriceEUR), 2)

	case req.UnitPriceEUR == nil && req.TotalPriceEUR != nil:
		order.TotalPriceEUR = *req.TotalPriceEUR
		order.UnitPriceEUR = utils.RoundFloat(*req.TotalPriceEUR/req.Quantity, 4)

	default:
		order.UnitPriceEUR = *req.UnitPriceEUR
		order.TotalPriceEUR = *req.TotalPriceEUR
		// Unit prices stated to the cent make the product drift by up to
		// half a cent per share.
		tolerance := 0.01 + 0.005*req.Quantity
		if math.Abs(order.TotalPriceEUR-req.Quantity*order.UnitPriceEUR) > tolerance {
			return models.Order{}, fmt.Errorf("%w: total price %.2f does not match quantity %g x unit price %.4f",
				ErrInvalidOrderPayload, order.TotalPriceEUR, req.Quantity, order.UnitPriceEUR)
		}
	}

	if err := model.InsertOrder(s.db, userID, order); err != nil {
		logger.L.Error("Failed to insert order", "userID", userID, "isin", isin, "error", err)
		return models.Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	s.reports.InvalidateUser(userID)
	logger.L.Info("Order created",
		"userID", userID, "orderID", order.ID, "isin", isin,
		"quantity", order.Quantity, "totalEUR", order.TotalPriceEUR, "source", order.PriceSource)
	return order, nil
}

// resolveOrderQuote prices an order the way a user would expect: at the date
// they named when they named one, at today's quote otherwise. A failed dated
// lookup still falls back to the current quote rather than rejecting the
// order outright.
func (s *orderServiceImpl) resolveOrderQuote(isin, date string) models.PriceQuote {
	if date != "" {
		quote := s.priceService.GetHistoricalPrice(isin, date)
		if quote.IsValid() {
			return quote
		}
		logger.L.Warn("Dated price lookup failed, falling back to current quote",
			"isin", isin, "date", date, "error", quote.Error)
	}
	return s.priceService.GetCurrentPrice(isin)
}

func (s *orderServiceImpl) ListOrders(userID int) ([]models.Order, error) {
	orders, err := model.GetOrdersByUserID(s.db, userID)
	if err != nil {
		logger.L.Error("Failed to list orders", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderServiceImpl) DeleteOrder(userID int, orderID string) error {
	if err := model.DeleteOrder(s.db, userID, orderID); err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		logger.L.Error("Failed to delete order", "userID", userID, "orderID", orderID, "error", err)
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.reports.InvalidateUser(userID)
	logger.L.Info("Order deleted", "userID", userID, "orderID", orderID)
	return nil
}
