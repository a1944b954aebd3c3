package processors

import (
	"fmt"
	"math"
	"time"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
)

const (
	methodXIRR             = "xirr"
	methodSimpleAnnualized = "simple_annualized"

	descriptionXIRR   = "Internal rate of return accounting for cash flows"
	descriptionSimple = "Simplified calculation based on total period"
)

// cashFlow represents a single dated flow for the XIRR calculation.
// Negative values = money out (orders), positive = money in (current value).
type cashFlow struct {
	date   time.Time
	amount float64
}

// performanceCalculatorImpl implements the PerformanceCalculator interface.
type performanceCalculatorImpl struct{}

// NewPerformanceCalculator creates a new instance of PerformanceCalculator.
func NewPerformanceCalculator() PerformanceCalculator {
	return &performanceCalculatorImpl{}
}

// Compute derives the money-weighted annual return of the portfolio. Every
// order is a capital outflow at its date and the current value one final
// inflow at asOf. The XIRR root is accepted only when the solver residual is
// below tolerance and the rate lands in (-99%, +1000%) annualized; otherwise
// the result degrades to a simple annualized growth rate over the full
// period, flagged in the method and error fields. The calculator reports
// every failure inside the result and never returns a Go error.
func (p *performanceCalculatorImpl) Compute(orders []models.Order, currentValue float64, asOf time.Time) models.PerformanceResult {
	if len(orders) == 0 || currentValue <= 0 {
		return models.PerformanceResult{
			Method:             methodXIRR,
			Description:        descriptionXIRR,
			CalculationDetails: []models.CashFlowDetail{},
			Error:              "Insufficient data",
		}
	}

	flows := make([]cashFlow, 0, len(orders)+1)
	for _, order := range orders {
		orderDate := utils.ParseDate(order.OrderDate)
		if orderDate.IsZero() {
			return calculationError(fmt.Sprintf("unparseable order date %q", order.OrderDate))
		}
		flows = append(flows, cashFlow{date: orderDate, amount: -order.TotalPriceEUR})
	}
	flows = append(flows, cashFlow{date: asOf, amount: currentValue})

	firstDate := flows[0].date
	for _, f := range flows {
		if f.date.Before(firstDate) {
			firstDate = f.date
		}
	}

	years := make([]float64, len(flows))
	for i, f := range flows {
		years[i] = f.date.Sub(firstDate).Hours() / 24 / 365.25
	}

	totalInvested := 0.0
	for _, f := range flows[:len(flows)-1] {
		totalInvested -= f.amount
	}
	if totalInvested <= 0 {
		return calculationError("no invested capital in cash flows")
	}

	rate, residual := solveXIRR(flows, years)
	if math.Abs(residual) < 1e-6 && rate > -0.99 && rate < 10 {
		annualReturn := rate * 100
		totalReturn := (currentValue/totalInvested - 1) * 100

		details := make([]models.CashFlowDetail, 0, len(flows))
		for i, f := range flows[:len(flows)-1] {
			details = append(details, models.CashFlowDetail{
				Date:           utils.FormatDate(f.date),
				Amount:         f.amount,
				Description:    fmt.Sprintf("Investment %d", i+1),
				YearsFromStart: years[i],
			})
		}
		details = append(details, models.CashFlowDetail{
			Date:           utils.FormatDate(asOf),
			Amount:         currentValue,
			Description:    "Current value",
			YearsFromStart: years[len(years)-1],
		})

		return models.PerformanceResult{
			AnnualReturn:       &annualReturn,
			TotalReturn:        &totalReturn,
			Method:             methodXIRR,
			Description:        descriptionXIRR,
			CalculationDetails: details,
		}
	}

	logger.L.Warn("XIRR solve rejected, falling back to simple annualized return",
		"rate", rate, "residual", residual)

	// Simple annualized growth over the whole holding period.
	elapsedYears := asOf.Sub(firstDate).Hours() / 24 / 365.25
	if elapsedYears > 0 {
		totalReturn := (currentValue/totalInvested - 1) * 100
		annualReturn := (math.Pow(currentValue/totalInvested, 1/elapsedYears) - 1) * 100
		return models.PerformanceResult{
			AnnualReturn:       &annualReturn,
			TotalReturn:        &totalReturn,
			Method:             methodSimpleAnnualized,
			Description:        descriptionSimple,
			CalculationDetails: []models.CashFlowDetail{},
			Error:              "XIRR calculation failed, simplified method used",
		}
	}

	return calculationError("invalid time period")
}

func calculationError(msg string) models.PerformanceResult {
	return models.PerformanceResult{
		Method:             methodXIRR,
		Description:        descriptionXIRR,
		CalculationDetails: []models.CashFlowDetail{},
		Error:              "Calculation error: " + msg,
	}
}

// solveXIRR runs Newton-Raphson on NPV(r) = sum(amount_i / (1+r)^years_i)
// starting from a 5% guess, with bisection as fallback when the iteration
// fails to converge. Returns the found rate and the NPV residual at it so
// the caller can judge acceptance.
func solveXIRR(flows []cashFlow, years []float64) (float64, float64) {
	const (
		maxIter = 100
		tol     = 1e-7
		minRate = -0.999
	)

	npvAt := func(rate float64) (float64, float64) {
		npv := 0.0
		dnpv := 0.0
		for i, f := range flows {
			y := years[i]
			base := 1 + rate
			if base <= 0 {
				return math.NaN(), math.NaN()
			}
			discount := math.Pow(base, y)
			if discount == 0 {
				continue
			}
			npv += f.amount / discount
			if y != 0 {
				dnpv -= y * f.amount / (discount * base)
			}
		}
		return npv, dnpv
	}

	rate := 0.05

	for iter := 0; iter < maxIter; iter++ {
		base := 1 + rate
		if base <= 0 {
			rate = minRate
		}

		npv, dnpv := npvAt(rate)
		if math.IsNaN(npv) {
			break
		}
		if math.Abs(npv) < tol {
			return rate, npv
		}
		if dnpv == 0 {
			// Derivative is zero, Newton-Raphson cannot continue.
			break
		}

		newRate := rate - npv/dnpv

		// Clamp to prevent wild oscillation.
		if newRate < minRate {
			newRate = minRate
		}
		if newRate > 100 {
			newRate = 100
		}
		rate = newRate
	}

	return bisectXIRR(flows, years)
}

// bisectXIRR searches the (-0.99, 10) bracket for a sign change and narrows
// it down. Used when Newton-Raphson oscillates or lands on a flat derivative.
func bisectXIRR(flows []cashFlow, years []float64) (float64, float64) {
	const (
		maxIter = 200
		tol     = 1e-7
	)

	npvAt := func(rate float64) float64 {
		sum := 0.0
		for i, f := range flows {
			base := 1 + rate
			if base <= 0 {
				return math.NaN()
			}
			sum += f.amount / math.Pow(base, years[i])
		}
		return sum
	}

	lo, hi := -0.99, 10.0
	npvLo := npvAt(lo)
	npvHi := npvAt(hi)

	if math.IsNaN(npvLo) || math.IsNaN(npvHi) || npvLo*npvHi > 0 {
		// No sign change, no root in this bracket.
		return math.NaN(), math.NaN()
	}

	for iter := 0; iter < maxIter; iter++ {
		mid := (lo + hi) / 2
		npvMid := npvAt(mid)
		if math.IsNaN(npvMid) {
			return math.NaN(), math.NaN()
		}
		if math.Abs(npvMid) < tol {
			return mid, npvMid
		}
		if npvMid*npvLo < 0 {
			hi = mid
		} else {
			lo = mid
			npvLo = npvMid
		}
	}

	mid := (lo + hi) / 2
	return mid, npvAt(mid)
}
