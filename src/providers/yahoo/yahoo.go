// backend/src/providers/yahoo/yahoo.go
package yahoo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/investfolio/backend/src/fx"
	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/model"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
	"golang.org/x/net/publicsuffix"
)

// A valid User-Agent is crucial; Yahoo rejects the Go default.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Exchange  string `json:"exchange"`
		Shortname string `json:"shortname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			Currency           string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// Client scrapes Yahoo Finance. Quote requests need the session crumb; the
// cookie jar holds the cookies that make the crumb acceptable.
type Client struct {
	httpClient http.Client
	crumb      string
	db         *sql.DB
	tickers    *cache.Cache // resolved ISIN-to-ticker symbols
}

// NewClient initializes the HTTP client with a cookie jar and fetches the
// Yahoo crumb. The database handle backs the persistent ticker map and may
// be nil in tests.
func NewClient(db *sql.DB) *Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	c := &Client{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
		db:      db,
		tickers: cache.New(12*time.Hour, time.Hour),
	}

	if err := c.initSession(); err != nil {
		logger.L.Error("Failed to initialize Yahoo Finance session. Price fetching may fail.", "error", err)
	}
	return c
}

func (c *Client) Name() string { return "Yahoo Finance" }

// initSession visits a Yahoo Finance page to get necessary cookies and the crumb.
func (c *Client) initSession() error {
	logger.L.Info("Initializing Yahoo Finance session to get crumb and cookies...")
	// A less common ticker avoids heavily cached pages.
	initURL := "https://finance.yahoo.com/quote/VHYL.L"
	req, err := http.NewRequest(http.MethodGet, initURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make initial request to Yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Yahoo response body: %w", err)
	}

	re := regexp.MustCompile(`"CrumbStore":{"crumb":"(.*?)"}`)
	matches := re.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return fmt.Errorf("could not find crumb in Yahoo Finance response. The page structure may have changed")
	}

	c.crumb = matches[1]
	logger.L.Info("Successfully obtained Yahoo Finance crumb.")
	return nil
}

// TickerForISIN resolves an ISIN to a Yahoo ticker symbol, consulting the
// in-process cache and the isin_ticker_map table before the search API.
func (c *Client) TickerForISIN(isin string) (string, error) {
	if ticker, found := c.tickers.Get(isin); found {
		return ticker.(string), nil
	}

	if c.db != nil {
		mapping, found, err := model.GetMappingByISIN(c.db, isin)
		if err != nil {
			logger.L.Warn("Ticker mapping lookup failed", "isin", isin, "error", err)
		} else if found {
			c.tickers.Set(isin, mapping.TickerSymbol, cache.DefaultExpiration)
			return mapping.TickerSymbol, nil
		}
	}

	symbol, exchange, err := c.searchTicker(isin)
	if err != nil {
		return "", err
	}

	c.tickers.Set(isin, symbol, cache.DefaultExpiration)
	if c.db != nil {
		mapping := model.ISINTickerMap{
			ISIN:         isin,
			TickerSymbol: symbol,
			Exchange:     sql.NullString{String: exchange, Valid: exchange != ""},
		}
		if err := model.InsertMapping(c.db, mapping); err != nil {
			logger.L.Warn("Failed to store ticker mapping", "isin", isin, "error", err)
		}
	}
	return symbol, nil
}

// searchTicker uses Yahoo's search to find a ticker for an ISIN.
func (c *Client) searchTicker(isin string) (string, string, error) {
	searchURL := fmt.Sprintf("https://query1.finance.yahoo.com/v1/finance/search?q=%s", url.QueryEscape(isin))
	req, err := http.NewRequest(http.MethodGet, searchURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to call Yahoo search API for ISIN %s: %w", isin, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("yahoo search API returned non-OK status %d for ISIN %s", resp.StatusCode, isin)
	}

	var searchData searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchData); err != nil {
		return "", "", fmt.Errorf("failed to decode Yahoo search response for ISIN %s: %w", isin, err)
	}

	if len(searchData.Quotes) == 0 {
		return "", "", fmt.Errorf("no ticker found for ISIN %s on Yahoo Finance", isin)
	}

	return searchData.Quotes[0].Symbol, searchData.Quotes[0].Exchange, nil
}

// quote fetches the regular market price for a ticker via the v7 endpoint,
// which requires the crumb.
func (c *Client) quote(symbol string) (float64, string, error) {
	if c.crumb == "" {
		logger.L.Warn("Yahoo crumb is missing, attempting to re-initialize session.")
		if err := c.initSession(); err != nil {
			return 0, "", fmt.Errorf("failed to re-initialize Yahoo session: %w", err)
		}
	}

	quoteURL := fmt.Sprintf("https://query2.finance.yahoo.com/v7/finance/quote?symbols=%s&crumb=%s", url.QueryEscape(symbol), url.QueryEscape(c.crumb))
	req, err := http.NewRequest(http.MethodGet, quoteURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to call Yahoo quote API for ticker %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, "", fmt.Errorf("yahoo quote API returned non-OK status %d for ticker %s. Body: %s", resp.StatusCode, symbol, string(bodyBytes))
	}

	var quoteData quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteData); err != nil {
		return 0, "", fmt.Errorf("failed to decode Yahoo quote response for ticker %s: %w", symbol, err)
	}

	if quoteData.QuoteResponse.Error != nil || len(quoteData.QuoteResponse.Result) == 0 {
		return 0, "", fmt.Errorf("yahoo quote API returned an error or no result for ticker %s", symbol)
	}

	price := quoteData.QuoteResponse.Result[0].RegularMarketPrice
	currency := quoteData.QuoteResponse.Result[0].Currency
	return price, currency, nil
}

// normalizeCurrency folds Yahoo's pence quotes into pounds.
func normalizeCurrency(price float64, currency string) (float64, string) {
	if currency == "GBp" || currency == "GBX" {
		return price / 100, "GBP"
	}
	return price, currency
}

// liveRateToEUR returns how many EUR one unit of the currency buys right now.
func (c *Client) liveRateToEUR(currency string) (float64, error) {
	pair := fmt.Sprintf("%sEUR=X", strings.ToUpper(currency))
	rate, _, err := c.quote(pair)
	if err != nil {
		return 0, err
	}
	if rate == 0 {
		return 0, fmt.Errorf("zero FX rate for %s", pair)
	}
	return rate, nil
}

// toEURLive converts an amount with the live cross rate, falling back to the
// ECB reference table for today when the live pair cannot be quoted.
func (c *Client) toEURLive(amount float64, currency string) (float64, bool) {
	rate, err := c.liveRateToEUR(currency)
	if err == nil {
		return amount * rate, true
	}
	logger.L.Warn("Live FX rate unavailable, trying ECB reference rates", "currency", currency, "error", err)

	ecbRate, err := fx.Rate(currency, time.Now())
	if err != nil || ecbRate == 0 {
		return 0, false
	}
	return amount / ecbRate, true
}

// CurrentQuote returns the latest price for a ticker symbol or ISIN,
// converted to EUR when a rate is available.
func (c *Client) CurrentQuote(instrument string) models.PriceQuote {
	symbol := strings.TrimSpace(instrument)
	if utils.IsISIN(symbol) {
		ticker, err := c.TickerForISIN(strings.ToUpper(symbol))
		if err != nil {
			return models.PriceQuote{Source: "Yahoo Finance", Error: fmt.Sprintf("Yahoo Finance error: %v", err)}
		}
		symbol = ticker
	}

	price, currency, err := c.quote(symbol)
	if err != nil {
		logger.L.Warn("Yahoo quote failed", "symbol", symbol, "error", err)
		return models.PriceQuote{Source: "Yahoo Finance", Error: fmt.Sprintf("Yahoo Finance error: %v", err)}
	}

	price, currency = normalizeCurrency(price, currency)
	if currency == "" {
		currency = "EUR"
	}

	if !strings.EqualFold(currency, "EUR") {
		if converted, ok := c.toEURLive(price, currency); ok {
			return models.PriceQuote{Price: &converted, Source: "Yahoo Finance (EUR)", Currency: "EUR"}
		}
		// An unconverted price still beats no price; the currency says so.
	}
	return models.PriceQuote{Price: &price, Source: "Yahoo Finance", Currency: strings.ToUpper(currency)}
}

// HistoricalQuote returns the price in effect on the target date: the
// greatest trading day at most ten days back that does not exceed it.
// Dated amounts are converted with the ECB rate of that day.
func (c *Client) HistoricalQuote(instrument string, target time.Time) models.PriceQuote {
	symbol := strings.TrimSpace(instrument)
	if utils.IsISIN(symbol) {
		ticker, err := c.TickerForISIN(strings.ToUpper(symbol))
		if err != nil {
			return models.PriceQuote{Source: "Yahoo Finance", Error: fmt.Sprintf("Yahoo Finance error: %v", err)}
		}
		symbol = ticker
	}

	from := target.AddDate(0, 0, -10)
	to := target.AddDate(0, 0, 1)
	points, currency, err := c.fetchSeries(symbol, &from, &to)
	if err != nil {
		logger.L.Warn("Yahoo history window failed", "symbol", symbol, "error", err)
		return models.PriceQuote{Source: "Yahoo Finance", Error: fmt.Sprintf("Yahoo Finance error: %v", err)}
	}
	if len(points) == 0 {
		return models.PriceQuote{Source: "Yahoo Finance", Error: "No historical data available"}
	}

	targetStr := utils.FormatDate(target)
	var bestDate string
	var bestPrice float64
	for _, point := range points {
		if point.date <= targetStr && point.date > bestDate {
			bestDate = point.date
			bestPrice = point.close
		}
	}
	if bestDate == "" {
		return models.PriceQuote{Source: "Yahoo Finance", Error: "No price data for requested date"}
	}

	bestPrice, currency = normalizeCurrency(bestPrice, currency)
	if currency == "" {
		currency = "EUR"
	}

	if !strings.EqualFold(currency, "EUR") {
		rate, err := fx.Rate(currency, utils.ParseDate(bestDate))
		if err == nil && rate != 0 {
			converted := bestPrice / rate
			return models.PriceQuote{Price: &converted, Source: "Yahoo Finance (EUR)", Currency: "EUR", Date: bestDate}
		}
		logger.L.Warn("ECB rate unavailable for dated conversion", "currency", currency, "date", bestDate, "error", err)
	}
	return models.PriceQuote{Price: &bestPrice, Source: "Yahoo Finance", Currency: strings.ToUpper(currency), Date: bestDate}
}

// PriceHistory returns the full close series for an instrument keyed by ISO
// date, in EUR. Days without a usable ECB rate are dropped.
func (c *Client) PriceHistory(instrument string) (map[string]float64, error) {
	symbol := strings.TrimSpace(instrument)
	if utils.IsISIN(symbol) {
		ticker, err := c.TickerForISIN(strings.ToUpper(symbol))
		if err != nil {
			return nil, err
		}
		symbol = ticker
	}

	points, currency, err := c.fetchSeries(symbol, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("empty price history for %s", symbol)
	}

	history := make(map[string]float64, len(points))
	skipped := 0
	for _, point := range points {
		price, pointCurrency := normalizeCurrency(point.close, currency)
		if pointCurrency != "" && !strings.EqualFold(pointCurrency, "EUR") {
			rate, err := fx.Rate(pointCurrency, utils.ParseDate(point.date))
			if err != nil || rate == 0 {
				skipped++
				continue
			}
			price /= rate
		}
		history[point.date] = price
	}
	if skipped > 0 {
		logger.L.Debug("Dropped history points without an FX rate", "symbol", symbol, "currency", currency, "skipped", skipped)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no convertible price history for %s", symbol)
	}
	return history, nil
}

type seriesPoint struct {
	date  string
	close float64
}

// fetchSeries calls the v8 chart endpoint. A nil window means the full
// range; otherwise the period is bounded by the two instants.
func (c *Client) fetchSeries(symbol string, from, to *time.Time) ([]seriesPoint, string, error) {
	endpoint := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d", url.PathEscape(symbol))
	if from != nil && to != nil {
		endpoint += fmt.Sprintf("&period1=%d&period2=%d", from.Unix(), to.Unix())
	} else {
		endpoint += "&range=max"
	}

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to call Yahoo chart API for ticker %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("yahoo chart API returned non-OK status %d for ticker %s", resp.StatusCode, symbol)
	}

	var chartData chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return nil, "", fmt.Errorf("failed to decode Yahoo chart response for ticker %s: %w", symbol, err)
	}

	if chartData.Chart.Error != nil || len(chartData.Chart.Result) == 0 {
		return nil, "", fmt.Errorf("yahoo chart API returned an error or no result for ticker %s", symbol)
	}

	result := chartData.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, result.Meta.Currency, nil
	}

	closes := result.Indicators.Quote[0].Close
	points := make([]seriesPoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, seriesPoint{
			date:  time.Unix(ts, 0).UTC().Format(utils.DefaultDateFormat),
			close: *closes[i],
		})
	}
	return points, result.Meta.Currency, nil
}
