package services

import (
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/processors"
)

// PriceService resolves instrument prices from the external providers.
// It covers the per-instrument lookups the calculation engine needs plus a
// batch entry point that warms the quote cache in one throttled pass.
type PriceService interface {
	processors.PriceLookup

	// GetCurrentPrices resolves quotes for a set of instruments, deduplicated,
	// spacing the underlying network calls out. Cached quotes are returned
	// without delay. The result maps each normalized instrument to its quote,
	// including failed ones.
	GetCurrentPrices(instruments []string) map[string]models.PriceQuote
}

// OrderService defines the interface for recording and listing orders.
// All operations are scoped to one user.
type OrderService interface {
	// CreateOrder validates the payload, fills missing prices from the
	// providers and persists the order. Returns the stored order.
	CreateOrder(userID int, req models.CreateOrderRequest) (models.Order, error)
	ListOrders(userID int) ([]models.Order, error)
	DeleteOrder(userID int, orderID string) error
}

// PortfolioService builds the portfolio reports. Summaries and series are
// cached per user; order mutations must call InvalidateUser.
type PortfolioService interface {
	GetPortfolioSummary(userID int) (models.PortfolioSummary, error)
	GetMonthlyPortfolioValues(userID int) ([]models.MonthlyValuation, error)
	GetPositionView(userID int, isin string) (models.PositionView, error)
	GetMonthlyPositionValues(userID int, isin string) ([]models.MonthlyValuation, error)
	InvalidateUser(userID int)
}

// ReportInvalidator is the slice of PortfolioService that order mutations
// need to drop stale cached reports.
type ReportInvalidator interface {
	InvalidateUser(userID int)
}

// ProjectionService runs the deterministic growth scenarios.
type ProjectionService interface {
	// GetProjectionSummary simulates every scenario for the given parameters.
	GetProjectionSummary(params models.ProjectionParams) models.ProjectionSummary
	// ValidateParams checks a raw JSON payload against the defaults and
	// converts it into typed parameters. Validation failures carry
	// user-facing messages.
	ValidateParams(raw map[string]interface{}, defaults models.ProjectionParams) (models.ProjectionParams, error)
	// DefaultParams returns the standard parameter set seeded with the given
	// portfolio value.
	DefaultParams(currentValue float64) models.ProjectionParams
}
