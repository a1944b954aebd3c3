package processors

import (
	"github.com/username/investfolio/backend/src/models"
)

// fiscalCalculatorImpl implements the FiscalCalculator interface.
type fiscalCalculatorImpl struct{}

// NewFiscalCalculator creates a new instance of FiscalCalculator.
func NewFiscalCalculator() FiscalCalculator {
	return &fiscalCalculatorImpl{}
}

// Compute evaluates a full liquidation today under the CTO (30% flat tax)
// and PEA (17.5% CSG/CRDS after 5 years) regimes. Gains are taxed at the
// regime rate; losses carry no tax and no tax recovery. With nothing
// invested both scenarios stay unvalued.
func (f *fiscalCalculatorImpl) Compute(totalInvested, currentValue, profitLossAbs float64) map[string]models.FiscalScenario {
	scenarios := map[string]models.FiscalScenario{
		"cto": {
			Name:        "CTO (Flat Tax 30%)",
			Description: "Ordinary securities account with 30% taxation",
			TaxRate:     0.30,
			Icon:        "🏦",
			Color:       "cto",
		},
		"pea": {
			Name:        "PEA (17.5% CSG/CRDS)",
			Description: "Equity savings plan after 5 years",
			TaxRate:     0.175,
			Icon:        "📈",
			Color:       "pea",
		},
	}

	if totalInvested <= 0 {
		return scenarios
	}

	for key, scenario := range scenarios {
		var taxAmount, netValue float64
		if profitLossAbs >= 0 {
			taxAmount = profitLossAbs * scenario.TaxRate
			netValue = currentValue - taxAmount
		} else {
			// Capital loss: no taxation, but no tax recovery either.
			taxAmount = 0.0
			netValue = currentValue
		}
		scenario.TaxAmount = &taxAmount
		scenario.NetValue = &netValue
		scenarios[key] = scenario
	}

	return scenarios
}
