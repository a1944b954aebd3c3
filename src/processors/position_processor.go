package processors

import (
	"sort"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
)

// positionAggregatorImpl implements the PositionAggregator interface.
type positionAggregatorImpl struct{}

// NewPositionAggregator creates a new instance of PositionAggregator.
func NewPositionAggregator() PositionAggregator {
	return &positionAggregatorImpl{}
}

// Aggregate groups orders by ISIN and computes one Position per instrument.
// Pricing failures leave the affected position's price fields nil; quantity,
// invested capital and average price are always populated so the sum of
// invested across positions equals the sum over orders exactly.
func (p *positionAggregatorImpl) Aggregate(orders []models.Order, lookup PriceLookup) []models.Position {
	grouped := make(map[string][]models.Order)
	for _, order := range orders {
		isin := normalizeISIN(order.ISIN)
		grouped[isin] = append(grouped[isin], order)
	}

	positions := make([]models.Position, 0, len(grouped))
	for isin, isinOrders := range grouped {
		var totalQuantity, totalInvested float64
		for _, order := range isinOrders {
			totalQuantity += order.Quantity
			totalInvested += order.TotalPriceEUR
		}

		avgUnitPrice := 0.0
		if totalQuantity > 0 {
			avgUnitPrice = totalInvested / totalQuantity
		}

		position := models.Position{
			ISIN:         isin,
			Quantity:     totalQuantity,
			Invested:     totalInvested,
			AvgUnitPrice: avgUnitPrice,
		}

		quote := lookup.GetCurrentPrice(isin)
		if quote.IsValid() {
			price := *quote.Price
			position.CurrentPrice = &price
			// A zero or negative quote is kept as informational but cannot
			// produce a meaningful valuation.
			if price > 0 {
				currentValue := price * totalQuantity
				plAbs := currentValue - totalInvested
				position.CurrentValue = &currentValue
				position.PLAbs = &plAbs
				if totalInvested > 0 {
					plPct := plAbs / totalInvested * 100.0
					position.PLPct = &plPct
				}
			}
		} else {
			logger.L.Warn("No valid current price for position", "isin", isin, "error", quote.Error)
		}

		positions = append(positions, position)
	}

	// Sort by ISIN for consistent ordering.
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ISIN < positions[j].ISIN
	})
	return positions
}
