// backend/src/services/projection_service.go
package services

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
)

// Validation messages are user-facing and surface verbatim in API responses.
var (
	errNegativeValue        = errors.New("La valeur actuelle du portefeuille ne peut pas être négative")
	errNegativeContribution = errors.New("La contribution mensuelle ne peut pas être négative")
	errHorizonOutOfRange    = errors.New("L'horizon temporel doit être entre 1 et 50 ans")
	errNonNumericParams     = errors.New("Paramètres invalides - vérifiez les valeurs numériques")
)

// Fixed hypotheses calibrated on long-run market statistics. Volatility is
// descriptive only.
var projectionScenarios = map[string]models.ProjectionScenario{
	"pessimist": {
		Name:         "Pessimiste",
		AnnualReturn: 0.03,
		Volatility:   0.15,
		Description:  "Scénario de crise prolongée, inflation élevée",
	},
	"normal": {
		Name:         "Normal",
		AnnualReturn: 0.07,
		Volatility:   0.12,
		Description:  "Scénario basé sur les moyennes historiques",
	},
	"optimist": {
		Name:         "Optimiste",
		AnnualReturn: 0.11,
		Volatility:   0.18,
		Description:  "Scénario de forte croissance économique",
	},
}

// avgMonth spaces the chart labels out; 30.44 days is the mean Gregorian
// month length.
const avgMonth = time.Duration(30.44 * 24 * float64(time.Hour))

type projectionServiceImpl struct{}

// NewProjectionService creates the deterministic projection engine.
func NewProjectionService() ProjectionService {
	return &projectionServiceImpl{}
}

// DefaultParams is the parameter set used when the client sends nothing:
// the caller's portfolio value, 500 EUR monthly, a 10 year horizon and
// 0.75% annual fees.
func (s *projectionServiceImpl) DefaultParams(currentValue float64) models.ProjectionParams {
	return models.ProjectionParams{
		CurrentValue:        currentValue,
		MonthlyContribution: 500,
		TimeHorizonYears:    10,
		AnnualFeesRate:      0.0075,
	}
}

// ValidateParams checks a raw JSON payload and merges it over the defaults.
// Absent keys keep their default; present keys must convert to a number
// (numeric strings are accepted). The fees rate is intentionally not
// range-checked.
func (s *projectionServiceImpl) ValidateParams(raw map[string]interface{}, defaults models.ProjectionParams) (models.ProjectionParams, error) {
	params := defaults

	if v, present := raw["current_value"]; present {
		f, ok := toFloat(v)
		if !ok {
			return models.ProjectionParams{}, errNonNumericParams
		}
		params.CurrentValue = f
	}
	if v, present := raw["monthly_contribution"]; present {
		f, ok := toFloat(v)
		if !ok {
			return models.ProjectionParams{}, errNonNumericParams
		}
		params.MonthlyContribution = f
	}
	if v, present := raw["time_horizon_years"]; present {
		n, ok := toInt(v)
		if !ok {
			return models.ProjectionParams{}, errNonNumericParams
		}
		params.TimeHorizonYears = n
	}
	if v, present := raw["annual_fees_rate"]; present {
		f, ok := toFloat(v)
		if !ok {
			return models.ProjectionParams{}, errNonNumericParams
		}
		params.AnnualFeesRate = f
	}

	if params.CurrentValue < 0 {
		return models.ProjectionParams{}, errNegativeValue
	}
	if params.MonthlyContribution < 0 {
		return models.ProjectionParams{}, errNegativeContribution
	}
	if params.TimeHorizonYears < 1 || params.TimeHorizonYears > 50 {
		return models.ProjectionParams{}, errHorizonOutOfRange
	}
	return params, nil
}

// GetProjectionSummary simulates every scenario and aggregates the spread.
func (s *projectionServiceImpl) GetProjectionSummary(params models.ProjectionParams) models.ProjectionSummary {
	projections := make(map[string]models.ProjectionResult, len(projectionScenarios))
	var finalValues []float64

	for key, scenario := range projectionScenarios {
		result := runScenario(params, scenario)
		projections[key] = result
		finalValues = append(finalValues, result.FinalValue)

		logger.L.Debug("Calculated projection",
			"scenario", scenario.Name,
			"finalValue", result.FinalValue,
			"totalGains", result.TotalGains,
			"annualizedReturn", result.AnnualizedReturn)
	}

	best, worst := 0.0, 0.0
	if len(finalValues) > 0 {
		best, worst = finalValues[0], finalValues[0]
		for _, v := range finalValues[1:] {
			if v > best {
				best = v
			}
			if v < worst {
				worst = v
			}
		}
	}

	return models.ProjectionSummary{
		Projections: projections,
		Parameters:  params,
		Summary: models.ProjectionStats{
			ScenariosCount:  len(projections),
			FinalValueRange: best - worst,
			BestCase:        best,
			WorstCase:       worst,
			CalculationDate: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// runScenario plays one scenario month by month. Each recorded point is the
// value before that month's contribution, growth and fees are applied, so
// the last month records the final value without touching it further.
func runScenario(params models.ProjectionParams, scenario models.ProjectionScenario) models.ProjectionResult {
	months := params.TimeHorizonYears * 12
	monthlyReturn := scenario.AnnualReturn / 12
	monthlyFees := params.AnnualFeesRate / 12

	monthlyValues := make([]float64, 0, months+1)
	labels := make([]string, 0, months+1)
	value := params.CurrentValue
	totalContributions := 0.0
	totalFees := 0.0
	start := time.Now()

	for month := 0; month <= months; month++ {
		if month%6 == 0 {
			labels = append(labels, start.Add(time.Duration(month)*avgMonth).Format("Jan 2006"))
		} else {
			labels = append(labels, "")
		}
		monthlyValues = append(monthlyValues, utils.RoundFloat(value, 2))

		if month < months {
			value += params.MonthlyContribution
			totalContributions += params.MonthlyContribution

			value += value * monthlyReturn

			fees := value * monthlyFees
			value -= fees
			totalFees += fees
		}
	}

	finalValue := monthlyValues[len(monthlyValues)-1]
	totalGains := finalValue - params.CurrentValue - totalContributions

	annualizedReturn := 0.0
	if params.CurrentValue > 0 {
		totalInvested := params.CurrentValue + totalContributions
		annualizedReturn = math.Pow(finalValue/totalInvested, 1/float64(params.TimeHorizonYears)) - 1
	}

	return models.ProjectionResult{
		ScenarioName:       scenario.Name,
		FinalValue:         finalValue,
		TotalContributions: totalContributions,
		TotalGains:         totalGains,
		TotalFees:          totalFees,
		AnnualizedReturn:   annualizedReturn,
		MonthlyValues:      monthlyValues,
		Labels:             labels,
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
