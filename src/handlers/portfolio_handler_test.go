package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/investfolio/backend/src/models"
)

func testSummary() models.PortfolioSummary {
	plPct := 4.0
	return models.PortfolioSummary{
		TotalInvested: 1250,
		CurrentValue:  1300,
		PLAbs:         50,
		PLPct:         &plPct,
		Positions: []models.Position{
			{ISIN: "IE00B4L5Y983", Quantity: 5, Invested: 530, AvgUnitPrice: 106},
		},
		Performance:     models.PerformanceResult{Method: "xirr", Description: "Money-weighted annual return"},
		FiscalScenarios: map[string]models.FiscalScenario{},
		OrdersCount:     3,
	}
}

func TestHandleGetPortfolio_RequiresAuth(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{})

	rec := httptest.NewRecorder()
	handler.HandleGetPortfolio(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required or user ID not found in context", decodeError(t, rec))
}

func TestHandleGetPortfolio_ReturnsSummaryWithETag(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{summary: testSummary()})

	rec := httptest.NewRecorder()
	handler.HandleGetPortfolio(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio", nil), 7))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, private", rec.Header().Get("Cache-Control"))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.True(t, strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`))

	var got models.PortfolioSummary
	decodeJSON(t, rec, &got)
	assert.Equal(t, 1250.0, got.TotalInvested)
	assert.Equal(t, 1300.0, got.CurrentValue)
	assert.Equal(t, 3, got.OrdersCount)
	require.Len(t, got.Positions, 1)
	assert.Equal(t, "IE00B4L5Y983", got.Positions[0].ISIN)
}

func TestHandleGetPortfolio_NotModifiedOnMatchingETag(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{summary: testSummary()})

	first := httptest.NewRecorder()
	handler.HandleGetPortfolio(first, withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio", nil), 7))
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio", nil), 7)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	handler.HandleGetPortfolio(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
	assert.Equal(t, etag, second.Header().Get("ETag"))
}

func TestHandleGetPortfolio_MatchesETagInList(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{summary: testSummary()})

	first := httptest.NewRecorder()
	handler.HandleGetPortfolio(first, withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio", nil), 7))
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio", nil), 7)
	req.Header.Set("If-None-Match", `"something-else", `+etag)
	second := httptest.NewRecorder()
	handler.HandleGetPortfolio(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
}

func TestHandleGetPortfolio_StaleETagGetsFullBody(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{summary: testSummary()})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio", nil), 7)
	req.Header.Set("If-None-Match", `"0123456789abcdef"`)
	rec := httptest.NewRecorder()
	handler.HandleGetPortfolio(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.PortfolioSummary
	decodeJSON(t, rec, &got)
	assert.Equal(t, 1300.0, got.CurrentValue)
}

func TestHandleGetPortfolio_ServiceError(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{summaryErr: fmt.Errorf("pricing offline")})

	rec := httptest.NewRecorder()
	handler.HandleGetPortfolio(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio", nil), 7))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error retrieving portfolio summary for userID 7: pricing offline", decodeError(t, rec))
}

func TestHandleGetPortfolioHistory_EmptySeriesSerializesAsArray(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{series: nil})

	rec := httptest.NewRecorder()
	handler.HandleGetPortfolioHistory(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio/history", nil), 7))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHandleGetPortfolioHistory_ReturnsSeries(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{series: []models.MonthlyValuation{
		{Month: "2024-01", MonthDisplay: "Jan 2024", Date: "2024-01-31", PortfolioValue: 1000, InvestedCapital: 1000, IsFirstMonth: true},
		{Month: "2024-02", MonthDisplay: "Feb 2024", Date: "2024-02-29", PortfolioValue: 1100, InvestedCapital: 1000, PLAbs: 100, PLPct: 10},
	}})

	rec := httptest.NewRecorder()
	handler.HandleGetPortfolioHistory(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/portfolio/history", nil), 7))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.MonthlyValuation
	decodeJSON(t, rec, &got)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01", got[0].Month)
	assert.True(t, got[0].IsFirstMonth)
	assert.Equal(t, 1100.0, got[1].PortfolioValue)
}

func TestHandleGetPosition_RejectsBadIdentifier(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/positions/x", nil), 7)
	rec := httptest.NewRecorder()
	handler.HandleGetPosition(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing field: isin", decodeError(t, rec))

	req = withUser(httptest.NewRequest(http.MethodGet, "/api/positions/x", nil), 7)
	req.SetPathValue("isin", "THIS-IDENTIFIER-IS-FAR-TOO-LONG-FOR-A-TICKER")
	rec = httptest.NewRecorder()
	handler.HandleGetPosition(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Invalid instrument identifier")
}

func TestHandleGetPosition_ReturnsView(t *testing.T) {
	price := 120.0
	value := 600.0
	handler := NewPortfolioHandler(&stubPortfolioService{view: models.PositionView{
		ISIN:          "IE00B4L5Y983",
		Quote:         models.PriceQuote{Price: &price, Source: "justetf", Currency: "EUR"},
		HasPosition:   true,
		TotalQuantity: 5,
		TotalInvested: 530,
		AveragePrice:  106,
		OrdersCount:   2,
		CurrentValue:  &value,
	}})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/positions/IE00B4L5Y983", nil), 7)
	req.SetPathValue("isin", "IE00B4L5Y983")
	rec := httptest.NewRecorder()
	handler.HandleGetPosition(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.PositionView
	decodeJSON(t, rec, &got)
	assert.Equal(t, "IE00B4L5Y983", got.ISIN)
	assert.True(t, got.HasPosition)
	assert.Equal(t, 5.0, got.TotalQuantity)
	require.NotNil(t, got.CurrentValue)
	assert.Equal(t, 600.0, *got.CurrentValue)
}

func TestHandleGetPositionHistory_ReturnsSeries(t *testing.T) {
	handler := NewPortfolioHandler(&stubPortfolioService{series: []models.MonthlyValuation{
		{Month: "2024-03", PortfolioValue: 320, InvestedCapital: 300},
	}})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/positions/IE00B4L5Y983/history", nil), 7)
	req.SetPathValue("isin", "IE00B4L5Y983")
	rec := httptest.NewRecorder()
	handler.HandleGetPositionHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.MonthlyValuation
	decodeJSON(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-03", got[0].Month)
}
