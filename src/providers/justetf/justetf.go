package justetf

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
)

const baseURL = "https://www.justetf.com/api/etfs"

// JustETF checks browser-ish headers; plain Go defaults get rejected.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// Client fetches EUR quotes for ETFs identified by ISIN.
type Client struct {
	httpClient http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Name() string { return "JustETF" }

// rawValue mirrors JustETF's localized number objects; only the raw float
// matters here. The pointer keeps "absent" distinguishable from zero.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteResponse struct {
	LatestQuote       rawValue `json:"latestQuote"`
	QuoteTradingVenue string   `json:"quoteTradingVenue"`
}

type chartResponse struct {
	Series []struct {
		Date  string   `json:"date"`
		Value rawValue `json:"value"`
	} `json:"series"`
	LatestQuote     rawValue `json:"latestQuote"`
	LatestQuoteDate string   `json:"latestQuoteDate"`
}

// CurrentQuote returns the latest EUR quote for an ISIN.
func (c *Client) CurrentQuote(instrument string) models.PriceQuote {
	isin := strings.ToUpper(strings.TrimSpace(instrument))
	endpoint := fmt.Sprintf("%s/%s/quote?currency=EUR&locale=fr", baseURL, isin)

	var payload quoteResponse
	if err := c.getJSON(endpoint, isin, &payload); err != nil {
		logger.L.Warn("JustETF quote request failed", "isin", isin, "error", err)
		return models.PriceQuote{Source: "JustETF", Error: fmt.Sprintf("JustETF error: %v", err)}
	}

	if payload.LatestQuote.Raw == nil {
		return models.PriceQuote{Source: "JustETF", Error: "Invalid JustETF response"}
	}

	price := *payload.LatestQuote.Raw
	return models.PriceQuote{
		Price:    &price,
		Source:   "JustETF",
		Currency: "EUR",
		Venue:    payload.QuoteTradingVenue,
	}
}

// HistoricalQuote returns the EUR quote in effect on the target date: the
// greatest chart date at most ten days back that does not exceed it.
func (c *Client) HistoricalQuote(instrument string, target time.Time) models.PriceQuote {
	isin := strings.ToUpper(strings.TrimSpace(instrument))
	from := target.AddDate(0, 0, -10)

	payload, err := c.fetchChart(isin, from, target)
	if err != nil {
		logger.L.Warn("JustETF chart window failed, falling back to current quote", "isin", isin, "error", err)
		current := c.CurrentQuote(isin)
		if current.IsValid() {
			return current
		}
		return models.PriceQuote{Source: "JustETF", Error: "No historical data available"}
	}

	targetStr := utils.FormatDate(target)
	var bestDate string
	var bestPrice float64
	for _, point := range payload.Series {
		if point.Value.Raw == nil || point.Date == "" {
			continue
		}
		if point.Date <= targetStr && point.Date > bestDate {
			bestDate = point.Date
			bestPrice = *point.Value.Raw
		}
	}
	if bestDate != "" {
		return models.PriceQuote{Price: &bestPrice, Source: "JustETF", Currency: "EUR", Date: bestDate}
	}

	// Thinly traded ETFs sometimes have an empty window but a usable
	// latest quote stamped on or before the target date.
	if payload.LatestQuote.Raw != nil && len(payload.LatestQuoteDate) >= 10 {
		latestDate := payload.LatestQuoteDate[:10]
		if latestDate <= targetStr {
			price := *payload.LatestQuote.Raw
			return models.PriceQuote{Price: &price, Source: "JustETF", Currency: "EUR", Date: latestDate}
		}
	}

	return models.PriceQuote{Source: "JustETF", Error: "No suitable historical price found"}
}

// PriceHistory returns the full EUR price series for an ISIN keyed by ISO date.
func (c *Client) PriceHistory(instrument string) (map[string]float64, error) {
	isin := strings.ToUpper(strings.TrimSpace(instrument))
	from := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

	payload, err := c.fetchChart(isin, from, time.Now())
	if err != nil {
		return nil, err
	}

	history := make(map[string]float64, len(payload.Series))
	for _, point := range payload.Series {
		if point.Value.Raw == nil || point.Date == "" {
			continue
		}
		history[point.Date] = *point.Value.Raw
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("empty price history for %s", isin)
	}
	return history, nil
}

func (c *Client) fetchChart(isin string, from, to time.Time) (*chartResponse, error) {
	params := url.Values{}
	params.Set("locale", "fr")
	params.Set("currency", "EUR")
	params.Set("valuesType", "MARKET_VALUE")
	params.Set("reduceData", "false")
	params.Set("includeDividends", "false")
	params.Set("features", "DIVIDENDS")
	params.Set("dateFrom", utils.FormatDate(from))
	params.Set("dateTo", utils.FormatDate(to))

	endpoint := fmt.Sprintf("%s/%s/performance-chart?%s", baseURL, isin, params.Encode())

	var payload chartResponse
	if err := c.getJSON(endpoint, isin, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) getJSON(endpoint, isin string, v interface{}) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Origin", "https://www.justetf.com")
	req.Header.Set("Referer", "https://www.justetf.com/fr/etf-profile.html?isin="+isin)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
