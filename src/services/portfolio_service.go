// backend/src/services/portfolio_service.go
package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/model"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/processors"
	"github.com/username/investfolio/backend/src/utils"
)

// Cache key formats for computed reports, all scoped per user. Position
// history additionally carries the ISIN.
const (
	ckPortfolioSummary = "report_portfolio_summary_user_%d"
	ckPortfolioHistory = "report_portfolio_history_user_%d"
	ckPositionHistory  = "report_position_history_user_%d_%s"
)

type portfolioServiceImpl struct {
	db           *sql.DB
	priceService PriceService
	positions    processors.PositionAggregator
	performance  processors.PerformanceCalculator
	fiscal       processors.FiscalCalculator
	valuation    processors.ValuationEngine
	reportCache  *cache.Cache
}

// NewPortfolioService creates the report builder on top of the calculation
// engine. Reports expire with the cache's default TTL so current values
// track the market, and are dropped eagerly when orders change.
func NewPortfolioService(
	db *sql.DB,
	priceService PriceService,
	positions processors.PositionAggregator,
	performance processors.PerformanceCalculator,
	fiscal processors.FiscalCalculator,
	valuation processors.ValuationEngine,
	reportCache *cache.Cache,
) PortfolioService {
	return &portfolioServiceImpl{
		db:           db,
		priceService: priceService,
		positions:    positions,
		performance:  performance,
		fiscal:       fiscal,
		valuation:    valuation,
		reportCache:  reportCache,
	}
}

// GetPortfolioSummary assembles the complete portfolio state: aggregated
// positions, totals, the money-weighted return and the liquidation tax
// scenarios.
func (s *portfolioServiceImpl) GetPortfolioSummary(userID int) (models.PortfolioSummary, error) {
	cacheKey := fmt.Sprintf(ckPortfolioSummary, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Returning cached portfolio summary", "userID", userID)
		return cached.(models.PortfolioSummary), nil
	}

	orders, err := model.GetOrdersByUserID(s.db, userID)
	if err != nil {
		logger.L.Error("Failed to load orders for summary", "userID", userID, "error", err)
		return models.PortfolioSummary{}, fmt.Errorf("failed to load orders: %w", err)
	}

	summary := s.buildSummary(orders)
	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

func (s *portfolioServiceImpl) buildSummary(orders []models.Order) models.PortfolioSummary {
	if len(orders) == 0 {
		return models.PortfolioSummary{
			Positions: []models.Position{},
			Performance: models.PerformanceResult{
				Method:             "xirr",
				Description:        "Insufficient data",
				CalculationDetails: []models.CashFlowDetail{},
				Error:              "No orders available",
			},
			FiscalScenarios: map[string]models.FiscalScenario{},
		}
	}

	// One throttled pass warms the quote cache so the per-position lookups
	// below are all hits.
	s.priceService.GetCurrentPrices(distinctISINs(orders))

	positions := s.positions.Aggregate(orders, s.priceService)

	totalInvested := 0.0
	for _, order := range orders {
		totalInvested += order.TotalPriceEUR
	}
	currentValue := 0.0
	for _, pos := range positions {
		if pos.CurrentValue != nil {
			currentValue += *pos.CurrentValue
		}
	}

	plAbs := currentValue - totalInvested
	var plPct *float64
	if totalInvested > 0 {
		pct := plAbs / totalInvested * 100
		plPct = &pct
	}

	return models.PortfolioSummary{
		TotalInvested:   totalInvested,
		CurrentValue:    currentValue,
		PLAbs:           plAbs,
		PLPct:           plPct,
		Positions:       positions,
		Performance:     s.performance.Compute(orders, currentValue, utils.Today()),
		FiscalScenarios: s.fiscal.Compute(totalInvested, currentValue, plAbs),
		OrdersCount:     len(orders),
	}
}

// GetMonthlyPortfolioValues reconstructs the month-by-month value history of
// the whole portfolio.
func (s *portfolioServiceImpl) GetMonthlyPortfolioValues(userID int) ([]models.MonthlyValuation, error) {
	cacheKey := fmt.Sprintf(ckPortfolioHistory, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Returning cached portfolio history", "userID", userID)
		return cached.([]models.MonthlyValuation), nil
	}

	orders, err := model.GetOrdersByUserID(s.db, userID)
	if err != nil {
		logger.L.Error("Failed to load orders for history", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	series := s.valuation.MonthlySeries(orders, s.priceService, utils.Today())
	s.reportCache.Set(cacheKey, series, cache.DefaultExpiration)
	return series, nil
}

// GetPositionView returns the live quote for an instrument next to the
// user's aggregate holding of it. Users without orders for the ISIN still
// get the quote, with HasPosition false.
func (s *portfolioServiceImpl) GetPositionView(userID int, isin string) (models.PositionView, error) {
	normalized := strings.ToUpper(strings.TrimSpace(isin))
	quote := s.priceService.GetCurrentPrice(normalized)

	orders, err := model.GetOrdersByUserIDAndISIN(s.db, userID, normalized)
	if err != nil {
		logger.L.Error("Failed to load orders for position view", "userID", userID, "isin", normalized, "error", err)
		return models.PositionView{}, fmt.Errorf("failed to load orders: %w", err)
	}

	view := models.PositionView{
		ISIN:        normalized,
		Quote:       quote,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}
	if len(orders) == 0 {
		return view, nil
	}

	totalQuantity := 0.0
	totalInvested := 0.0
	first := orders[0].OrderDate
	last := orders[0].OrderDate
	for _, order := range orders {
		totalQuantity += order.Quantity
		totalInvested += order.TotalPriceEUR
		if order.OrderDate < first {
			first = order.OrderDate
		}
		if order.OrderDate > last {
			last = order.OrderDate
		}
	}

	view.HasPosition = true
	view.TotalQuantity = totalQuantity
	view.TotalInvested = totalInvested
	if totalQuantity > 0 {
		view.AveragePrice = totalInvested / totalQuantity
	}
	view.OrdersCount = len(orders)
	view.FirstPurchaseDate = first
	view.LastPurchaseDate = last

	if quote.IsValid() {
		value := *quote.Price * totalQuantity
		view.CurrentValue = &value
		if value != 0 {
			pnl := value - totalInvested
			view.UnrealizedPL = &pnl
			if totalInvested > 0 {
				pct := pnl / totalInvested * 100
				view.UnrealizedPLPct = &pct
			}
		}
	}
	return view, nil
}

// GetMonthlyPositionValues reconstructs the monthly value history of a
// single instrument.
func (s *portfolioServiceImpl) GetMonthlyPositionValues(userID int, isin string) ([]models.MonthlyValuation, error) {
	normalized := strings.ToUpper(strings.TrimSpace(isin))

	cacheKey := fmt.Sprintf(ckPositionHistory, userID, normalized)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Returning cached position history", "userID", userID, "isin", normalized)
		return cached.([]models.MonthlyValuation), nil
	}

	orders, err := model.GetOrdersByUserIDAndISIN(s.db, userID, normalized)
	if err != nil {
		logger.L.Error("Failed to load orders for position history", "userID", userID, "isin", normalized, "error", err)
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	series := s.valuation.MonthlySeries(orders, s.priceService, utils.Today())
	s.reportCache.Set(cacheKey, series, cache.DefaultExpiration)
	return series, nil
}

// InvalidateUser drops every cached report belonging to the user.
func (s *portfolioServiceImpl) InvalidateUser(userID int) {
	s.reportCache.Delete(fmt.Sprintf(ckPortfolioSummary, userID))
	s.reportCache.Delete(fmt.Sprintf(ckPortfolioHistory, userID))

	// Position history keys carry an ISIN suffix, so these need a scan.
	prefix := fmt.Sprintf(ckPositionHistory, userID, "")
	for key := range s.reportCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reportCache.Delete(key)
		}
	}
	logger.L.Debug("Invalidated cached reports", "userID", userID)
}

func distinctISINs(orders []models.Order) []string {
	seen := make(map[string]bool, len(orders))
	isins := make([]string, 0, len(orders))
	for _, order := range orders {
		if !seen[order.ISIN] {
			seen[order.ISIN] = true
			isins = append(isins, order.ISIN)
		}
	}
	return isins
}
