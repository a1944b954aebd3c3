package processors

import (
	"sort"
	"strings"
	"time"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
)

// valuationEngineImpl implements the ValuationEngine interface.
type valuationEngineImpl struct {
	cacheWorkers int
}

// NewValuationEngine creates a new instance of ValuationEngine. cacheWorkers
// bounds the concurrent history prefetches per computation.
func NewValuationEngine(cacheWorkers int) ValuationEngine {
	return &valuationEngineImpl{cacheWorkers: cacheWorkers}
}

// MonthlySeries reconstructs the portfolio value at every month boundary
// from the month of the earliest order through asOf's month, plus one
// trailing entry at asOf itself. The first boundary is always reported as
// zero, it stands for "before any position existed". Positions at a
// boundary come from orders strictly before it; instruments priced from
// the prefetched history at the boundary date, falling back to the current
// quote when no history is available. Invested capital accumulates whether
// or not a price was found.
func (v *valuationEngineImpl) MonthlySeries(orders []models.Order, lookup PriceLookup, asOf time.Time) []models.MonthlyValuation {
	if len(orders) == 0 {
		return []models.MonthlyValuation{}
	}

	earliest := time.Time{}
	isins := make([]string, 0, len(orders))
	seen := make(map[string]bool)
	for _, order := range orders {
		orderDate := utils.ParseDate(order.OrderDate)
		if orderDate.IsZero() {
			continue
		}
		if earliest.IsZero() || orderDate.Before(earliest) {
			earliest = orderDate
		}
		isin := normalizeISIN(order.ISIN)
		if !seen[isin] {
			seen[isin] = true
			isins = append(isins, isin)
		}
	}
	if earliest.IsZero() {
		logger.L.Warn("No parseable order dates, monthly series is empty")
		return []models.MonthlyValuation{}
	}

	boundaries := utils.MonthlyBoundaries(earliest, asOf)

	cache := NewPriceHistoryCache(v.cacheWorkers)
	cache.Prefetch(lookup, isins)
	defer cache.Clear()

	// Current quotes back historical gaps; resolved once per instrument.
	currentPrices := make(map[string]*float64)
	currentPrice := func(isin string) *float64 {
		if price, ok := currentPrices[isin]; ok {
			return price
		}
		var price *float64
		quote := lookup.GetCurrentPrice(isin)
		if quote.IsValid() && *quote.Price > 0 {
			p := *quote.Price
			price = &p
		}
		currentPrices[isin] = price
		return price
	}

	series := make([]models.MonthlyValuation, 0, len(boundaries)+1)
	for i, boundary := range boundaries {
		if i == 0 {
			series = append(series, models.MonthlyValuation{
				Month:        boundary.Format("2006-01"),
				MonthDisplay: boundary.Format("Jan 2006"),
				Date:         utils.FormatDate(boundary),
				Positions:    []models.PositionDetail{},
				IsFirstMonth: true,
			})
			continue
		}
		series = append(series, v.valueAt(boundary, orders, cache, currentPrice, false))
	}

	today := v.valueAt(asOf, orders, cache, currentPrice, true)
	series = append(series, today)

	return series
}

// valueAt computes one valuation entry for a target date from the orders
// strictly before it.
func (v *valuationEngineImpl) valueAt(target time.Time, orders []models.Order, cache *PriceHistoryCache, currentPrice func(string) *float64, isCurrent bool) models.MonthlyValuation {
	type holding struct {
		quantity float64
		invested float64
	}
	holdings := make(map[string]*holding)
	for _, order := range orders {
		orderDate := utils.ParseDate(order.OrderDate)
		if orderDate.IsZero() || !orderDate.Before(target) {
			continue
		}
		isin := normalizeISIN(order.ISIN)
		h, ok := holdings[isin]
		if !ok {
			h = &holding{}
			holdings[isin] = h
		}
		h.quantity += order.Quantity
		h.invested += order.TotalPriceEUR
	}

	entry := models.MonthlyValuation{
		Month:        target.Format("2006-01"),
		MonthDisplay: target.Format("Jan 2006"),
		Date:         utils.FormatDate(target),
		Positions:    make([]models.PositionDetail, 0, len(holdings)),
		IsCurrent:    isCurrent,
	}

	for isin, h := range holdings {
		detail := models.PositionDetail{
			ISIN:     isin,
			Quantity: h.quantity,
			Invested: h.invested,
		}

		if price, ok := cache.Lookup(isin, target); ok {
			p := price
			detail.Price = &p
		} else if fallback := currentPrice(isin); fallback != nil {
			detail.Price = fallback
			detail.PriceFallback = true
		}

		if detail.Price != nil {
			value := *detail.Price * h.quantity
			detail.Value = &value
			entry.PortfolioValue += value
		}
		// Capital deployed is a fact whether or not pricing succeeded.
		entry.InvestedCapital += h.invested

		entry.Positions = append(entry.Positions, detail)
	}

	sort.Slice(entry.Positions, func(i, j int) bool {
		return entry.Positions[i].ISIN < entry.Positions[j].ISIN
	})

	entry.PLAbs = entry.PortfolioValue - entry.InvestedCapital
	if entry.InvestedCapital > 0 {
		entry.PLPct = entry.PLAbs / entry.InvestedCapital * 100.0
	}

	return entry
}

// normalizeISIN uppercases and trims an instrument identifier so grouping
// and cache keys agree regardless of input casing.
func normalizeISIN(isin string) string {
	return strings.ToUpper(strings.TrimSpace(isin))
}
