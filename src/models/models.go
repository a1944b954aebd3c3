package models

// Order represents a single investment order (a buy of an instrument).
type Order struct {
	ID            string  `json:"id"`
	ISIN          string  `json:"isin"`
	Quantity      float64 `json:"quantity"`
	UnitPriceEUR  float64 `json:"unitPriceEUR"`
	TotalPriceEUR float64 `json:"totalPriceEUR"`
	OrderDate     string  `json:"date"` // "YYYY-MM-DD"
	PriceSource   string  `json:"priceSource,omitempty"`
	Venue         string  `json:"venue,omitempty"`
	RequestedDate string  `json:"requestedDate,omitempty"`
}

// CreateOrderRequest is the payload accepted when recording a new order.
// Prices are optional; when absent the server resolves the unit price from
// the price providers for the requested date and derives the total (or the
// unit price from a given total).
type CreateOrderRequest struct {
	ISIN          string   `json:"isin"`
	Quantity      float64  `json:"quantity"`
	Date          string   `json:"date"`
	UnitPriceEUR  *float64 `json:"unitPriceEUR,omitempty"`
	TotalPriceEUR *float64 `json:"totalPriceEUR,omitempty"`
}

// PriceQuote is the result of a price resolution from an external source.
type PriceQuote struct {
	Price    *float64 `json:"price"`
	Source   string   `json:"source"`
	Currency string   `json:"currency"`
	Venue    string   `json:"venue,omitempty"`
	Date     string   `json:"date,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// IsValid reports whether the quote carries a usable price.
func (q PriceQuote) IsValid() bool {
	return q.Price != nil && q.Error == ""
}

// Position is the aggregate of all orders for one ISIN.
// Pricing fields are pointers because a position can exist without any
// resolvable quote; consumers render null rather than a misleading zero.
type Position struct {
	ISIN         string   `json:"isin"`
	Quantity     float64  `json:"quantity"`
	Invested     float64  `json:"invested"`
	AvgUnitPrice float64  `json:"avgUnitPrice"`
	CurrentPrice *float64 `json:"currentPrice"`
	CurrentValue *float64 `json:"currentValue"`
	PLAbs        *float64 `json:"plAbs"`
	PLPct        *float64 `json:"plPct"`
}

// CashFlowDetail is one dated flow used by the performance calculation,
// echoed back so the client can display how the figure was obtained.
type CashFlowDetail struct {
	Date           string  `json:"date"`
	Amount         float64 `json:"amount"`
	Description    string  `json:"description"` // "Investment N" or "Current value"
	YearsFromStart float64 `json:"years_from_start"`
}

// PerformanceResult carries the money-weighted return of the portfolio.
// Method is "xirr" when the solver converged, "simple_annualized" for the
// degraded global-growth fallback.
type PerformanceResult struct {
	AnnualReturn       *float64         `json:"annual_return"`
	TotalReturn        *float64         `json:"total_return"`
	Method             string           `json:"method"`
	Description        string           `json:"description"`
	CalculationDetails []CashFlowDetail `json:"calculation_details"`
	Error              string           `json:"error,omitempty"`
}

// FiscalScenario is the net outcome of liquidating today under one tax regime.
type FiscalScenario struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TaxRate     float64  `json:"tax_rate"`
	NetValue    *float64 `json:"net_value"`
	TaxAmount   *float64 `json:"tax_amount"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
}

// PortfolioSummary is the full portfolio state returned by GET /api/portfolio.
type PortfolioSummary struct {
	TotalInvested   float64                   `json:"total_invested"`
	CurrentValue    float64                   `json:"current_value"`
	PLAbs           float64                   `json:"profit_loss_absolute"`
	PLPct           *float64                  `json:"profit_loss_percentage"`
	Positions       []Position                `json:"positions"`
	Performance     PerformanceResult         `json:"performance"`
	FiscalScenarios map[string]FiscalScenario `json:"fiscal_scenarios"`
	OrdersCount     int                       `json:"orders_count"`
}

// PositionView is the enriched single-instrument answer of the positions
// endpoint: the live quote next to the user's aggregate for that ISIN.
type PositionView struct {
	ISIN              string     `json:"isin"`
	Quote             PriceQuote `json:"quote"`
	HasPosition       bool       `json:"has_position"`
	TotalQuantity     float64    `json:"total_quantity"`
	TotalInvested     float64    `json:"total_invested"`
	AveragePrice      float64    `json:"average_purchase_price"`
	OrdersCount       int        `json:"orders_count"`
	FirstPurchaseDate string     `json:"first_purchase_date,omitempty"`
	LastPurchaseDate  string     `json:"last_purchase_date,omitempty"`
	CurrentValue      *float64   `json:"current_value"`
	UnrealizedPL      *float64   `json:"unrealized_pnl"`
	UnrealizedPLPct   *float64   `json:"unrealized_pnl_pct"`
	LastUpdated       string     `json:"last_updated"`
}
