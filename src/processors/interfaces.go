package processors

import (
	"time"

	"github.com/username/investfolio/backend/src/models"
)

// PriceLookup is the pricing capability the engine consumes. The concrete
// implementation lives in the services package; processors only depend on
// this narrow surface so calculations stay testable with canned prices.
type PriceLookup interface {
	// GetCurrentPrice resolves the latest EUR quote for an ISIN. Failures
	// are reported inside the quote (nil price + error message), not as a
	// Go error.
	GetCurrentPrice(isin string) models.PriceQuote

	// GetHistoricalPrice resolves the EUR quote applicable on a given date
	// ("2006-01-02"), looking back from that date when the market was closed.
	GetHistoricalPrice(isin string, date string) models.PriceQuote

	// FetchAllPrices returns an instrument's full available price history as
	// a date ("2006-01-02") to EUR price map. One remote round trip.
	FetchAllPrices(isin string) (map[string]float64, error)
}

// PositionAggregator defines the interface for aggregating orders into positions.
type PositionAggregator interface {
	Aggregate(orders []models.Order, lookup PriceLookup) []models.Position
}

// PerformanceCalculator defines the interface for computing the money-weighted return.
type PerformanceCalculator interface {
	Compute(orders []models.Order, currentValue float64, asOf time.Time) models.PerformanceResult
}

// FiscalCalculator defines the interface for computing liquidation tax scenarios.
type FiscalCalculator interface {
	Compute(totalInvested, currentValue, profitLossAbs float64) map[string]models.FiscalScenario
}

// ValuationEngine defines the interface for reconstructing the monthly value history.
type ValuationEngine interface {
	MonthlySeries(orders []models.Order, lookup PriceLookup, asOf time.Time) []models.MonthlyValuation
}
