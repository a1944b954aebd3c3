// backend/src/models/valuation.go
package models

// PositionDetail is the per-instrument breakdown inside one monthly entry.
// PriceFallback marks months where no historical price was available and the
// current price stood in for it.
type PositionDetail struct {
	ISIN          string   `json:"isin"`
	Quantity      float64  `json:"quantity"`
	Invested      float64  `json:"invested"`
	Price         *float64 `json:"price"`
	Value         *float64 `json:"value"`
	PriceFallback bool     `json:"price_fallback,omitempty"`
}

// MonthlyValuation is one point of the reconstructed portfolio history.
// The series starts at the month of the earliest order and ends with a
// trailing "as of today" entry flagged IsCurrent.
type MonthlyValuation struct {
	Month           string           `json:"month"`         // "2006-01"
	MonthDisplay    string           `json:"month_display"` // "Jan 2006"
	Date            string           `json:"date"`          // as-of date, "2006-01-02"
	PortfolioValue  float64          `json:"portfolio_value"`
	InvestedCapital float64          `json:"invested_capital"`
	PLAbs           float64          `json:"profit_loss_abs"`
	PLPct           float64          `json:"profit_loss_pct"`
	Positions       []PositionDetail `json:"positions"`
	IsFirstMonth    bool             `json:"is_first_month,omitempty"`
	IsCurrent       bool             `json:"is_current,omitempty"`
}
