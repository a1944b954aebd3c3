// backend/src/models/projection.go
package models

// ProjectionScenario is one fixed market hypothesis used by the projection
// engine. Volatility is descriptive metadata only and takes no part in the
// deterministic computation.
type ProjectionScenario struct {
	Name         string  `json:"name"`
	AnnualReturn float64 `json:"annual_return"`
	Volatility   float64 `json:"volatility"`
	Description  string  `json:"description"`
}

// ProjectionParams are the user-supplied inputs of a projection run.
type ProjectionParams struct {
	CurrentValue        float64 `json:"current_value"`
	MonthlyContribution float64 `json:"monthly_contribution"`
	TimeHorizonYears    int     `json:"time_horizon_years"`
	AnnualFeesRate      float64 `json:"annual_fees_rate"`
}

// ProjectionResult is the simulated outcome of one scenario.
type ProjectionResult struct {
	ScenarioName       string    `json:"scenario_name"`
	FinalValue         float64   `json:"final_value"`
	TotalContributions float64   `json:"total_contributions"`
	TotalGains         float64   `json:"total_gains"`
	TotalFees          float64   `json:"total_fees"`
	AnnualizedReturn   float64   `json:"annualized_return"`
	MonthlyValues      []float64 `json:"monthly_values"`
	Labels             []string  `json:"labels"`
}

// ProjectionStats aggregates the spread across scenarios.
type ProjectionStats struct {
	ScenariosCount  int     `json:"scenarios_count"`
	FinalValueRange float64 `json:"final_value_range"`
	BestCase        float64 `json:"best_case"`
	WorstCase       float64 `json:"worst_case"`
	CalculationDate string  `json:"calculation_date"`
}

// ProjectionSummary is the full response of POST /api/projections.
type ProjectionSummary struct {
	Projections map[string]ProjectionResult `json:"projections"`
	Parameters  ProjectionParams            `json:"parameters"`
	Summary     ProjectionStats             `json:"summary"`
}
