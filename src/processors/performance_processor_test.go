package processors

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/investfolio/backend/src/models"
)

func TestCompute_SimpleBuyAndHold(t *testing.T) {
	// 10,000 invested, worth 11,000 one year later. XIRR ~10%.
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{order("IE00B4L5Y983", 100, 10000, "2023-01-01")}

	result := NewPerformanceCalculator().Compute(orders, 11000, asOf)

	assert.Equal(t, "xirr", result.Method)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.AnnualReturn)
	require.NotNil(t, result.TotalReturn)
	assert.InDelta(t, 10.0, *result.AnnualReturn, 0.5)
	assert.InDelta(t, 10.0, *result.TotalReturn, 1e-6)
}

func TestCompute_NegativeReturn(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{order("IE00B4L5Y983", 100, 10000, "2023-01-01")}

	result := NewPerformanceCalculator().Compute(orders, 8000, asOf)

	assert.Equal(t, "xirr", result.Method)
	require.NotNil(t, result.AnnualReturn)
	assert.InDelta(t, -20.0, *result.AnnualReturn, 0.5)
	assert.InDelta(t, -20.0, *result.TotalReturn, 1e-6)
}

func TestCompute_BreakEvenIsZero(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{order("IE00B4L5Y983", 100, 10000, "2023-01-01")}

	result := NewPerformanceCalculator().Compute(orders, 10000, asOf)

	assert.Equal(t, "xirr", result.Method)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.AnnualReturn)
	assert.InDelta(t, 0.0, *result.AnnualReturn, 1e-3)
	assert.InDelta(t, 0.0, *result.TotalReturn, 1e-9)
}

func TestCompute_StaggeredInvestments(t *testing.T) {
	// Two buys six months apart; the rate must account for flow timing.
	asOf := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{
		order("IE00B4L5Y983", 100, 10000, "2024-01-01"),
		order("IE00B4L5Y983", 100, 11000, "2024-07-01"),
	}

	result := NewPerformanceCalculator().Compute(orders, 24000, asOf)

	assert.Equal(t, "xirr", result.Method)
	require.NotNil(t, result.AnnualReturn)
	// First flow gained ~14% over a year, second ~9% over six months.
	assert.Greater(t, *result.AnnualReturn, 10.0)
	assert.Less(t, *result.AnnualReturn, 30.0)
}

func TestCompute_CalculationDetails(t *testing.T) {
	asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{
		order("IE00B4L5Y983", 100, 10000, "2024-01-01"),
		order("LU0274208692", 10, 1000, "2024-04-01"),
	}

	result := NewPerformanceCalculator().Compute(orders, 12000, asOf)

	require.Len(t, result.CalculationDetails, 3)
	first := result.CalculationDetails[0]
	assert.Equal(t, "Investment 1", first.Description)
	assert.Equal(t, "2024-01-01", first.Date)
	assert.InDelta(t, -10000.0, first.Amount, 1e-9)
	assert.Equal(t, 0.0, first.YearsFromStart)

	second := result.CalculationDetails[1]
	assert.Equal(t, "Investment 2", second.Description)
	assert.InDelta(t, -1000.0, second.Amount, 1e-9)
	assert.Greater(t, second.YearsFromStart, 0.0)

	last := result.CalculationDetails[2]
	assert.Equal(t, "Current value", last.Description)
	assert.Equal(t, "2024-07-01", last.Date)
	assert.InDelta(t, 12000.0, last.Amount, 1e-9)
}

func TestCompute_NoOrders(t *testing.T) {
	result := NewPerformanceCalculator().Compute(nil, 10000, time.Now())

	assert.Equal(t, "xirr", result.Method)
	assert.Equal(t, "Insufficient data", result.Error)
	assert.Nil(t, result.AnnualReturn)
	assert.Nil(t, result.TotalReturn)
	assert.Empty(t, result.CalculationDetails)
}

func TestCompute_ZeroCurrentValue(t *testing.T) {
	orders := []models.Order{order("IE00B4L5Y983", 100, 10000, "2023-01-01")}
	result := NewPerformanceCalculator().Compute(orders, 0, time.Now())

	assert.Equal(t, "Insufficient data", result.Error)
	assert.Nil(t, result.AnnualReturn)
}

func TestCompute_OutOfBandRootFallsBackToSimple(t *testing.T) {
	// A 100x gain in one year solves far beyond the +1000% acceptance band,
	// so the calculator degrades to the simple annualized method.
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{order("IE00B4L5Y983", 1, 100, "2023-01-01")}

	result := NewPerformanceCalculator().Compute(orders, 10000, asOf)

	assert.Equal(t, "simple_annualized", result.Method)
	assert.Equal(t, "XIRR calculation failed, simplified method used", result.Error)
	require.NotNil(t, result.AnnualReturn)
	require.NotNil(t, result.TotalReturn)
	assert.InDelta(t, 9900.0, *result.TotalReturn, 1e-6)
	// (100)^(1/years) - 1 with years just under one.
	assert.Greater(t, *result.AnnualReturn, 9000.0)
	assert.Empty(t, result.CalculationDetails)
}

func TestCompute_SameDayFlowsReportCalculationError(t *testing.T) {
	// All flows on the same date leave no time axis to solve over.
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{order("IE00B4L5Y983", 100, 10000, "2024-01-01")}

	result := NewPerformanceCalculator().Compute(orders, 12000, asOf)

	assert.Nil(t, result.AnnualReturn)
	assert.Nil(t, result.TotalReturn)
	assert.True(t, strings.HasPrefix(result.Error, "Calculation error:"), result.Error)
}

func TestCompute_UnparseableOrderDate(t *testing.T) {
	orders := []models.Order{order("IE00B4L5Y983", 100, 10000, "15/01/2023")}
	result := NewPerformanceCalculator().Compute(orders, 12000, time.Now())

	assert.Nil(t, result.AnnualReturn)
	assert.True(t, strings.HasPrefix(result.Error, "Calculation error:"), result.Error)
}
