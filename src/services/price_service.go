// backend/src/services/price_service.go
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/investfolio/backend/src/config"
	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/providers"
	"github.com/username/investfolio/backend/src/utils"
)

// sourceError marks quotes that failed at the routing level rather than at a
// specific provider; provider-level failures keep the provider as source.
const sourceError = "Error"

// providerSource is the slice of the registry the price service consumes.
type providerSource interface {
	ForInstrument(instrument string) providers.Provider
	Yahoo() providers.Provider
}

type priceServiceImpl struct {
	registry providerSource
	quotes   *cache.Cache
	delay    time.Duration
}

// NewPriceService creates the price resolution service on top of the provider
// registry. Successful current quotes are cached so repeated portfolio reads
// within the TTL do not hammer the providers.
func NewPriceService(registry *providers.Registry) PriceService {
	ttl := 15 * time.Minute
	delay := 250 * time.Millisecond
	if config.Cfg != nil {
		ttl = config.Cfg.PriceCacheTTL
		delay = config.Cfg.PriceRequestDelay
	}
	return &priceServiceImpl{
		registry: registry,
		quotes:   cache.New(ttl, 2*ttl),
		delay:    delay,
	}
}

// GetCurrentPrice resolves the latest EUR quote for a ticker or ISIN. ISINs
// go to JustETF first and fall back to Yahoo Finance's ISIN search; plain
// tickers only ever resolve through Yahoo Finance.
func (s *priceServiceImpl) GetCurrentPrice(instrument string) models.PriceQuote {
	normalized := strings.ToUpper(strings.TrimSpace(instrument))
	if normalized == "" {
		return models.PriceQuote{Source: sourceError, Error: "Empty ticker/ISIN provided"}
	}

	if cached, found := s.quotes.Get(normalized); found {
		return cached.(models.PriceQuote)
	}

	primary := s.registry.ForInstrument(normalized)
	quote := primary.CurrentQuote(normalized)
	if !quote.IsValid() && utils.IsISIN(normalized) {
		logger.L.Debug("primary price source failed, trying fallback",
			"instrument", normalized, "source", primary.Name(), "error", quote.Error)
		quote = s.registry.Yahoo().CurrentQuote(normalized)
	}

	if quote.IsValid() {
		s.quotes.Set(normalized, quote, cache.DefaultExpiration)
		return quote
	}

	logger.L.Warn("price unavailable from all sources", "instrument", normalized)
	return models.PriceQuote{Source: sourceError, Error: "Price unavailable from all sources"}
}

// GetHistoricalPrice resolves the EUR quote applicable on the given date.
// Only the instrument's primary source is consulted; a dated price from the
// wrong venue is worse than no price.
func (s *priceServiceImpl) GetHistoricalPrice(instrument string, date string) models.PriceQuote {
	normalized := strings.ToUpper(strings.TrimSpace(instrument))
	if normalized == "" {
		return models.PriceQuote{Source: sourceError, Error: "Empty ticker/ISIN provided"}
	}

	target := utils.ParseDate(date)
	if target.IsZero() {
		return models.PriceQuote{Source: sourceError, Error: "Invalid date format, expected YYYY-MM-DD"}
	}

	return s.registry.ForInstrument(normalized).HistoricalQuote(normalized, target)
}

// FetchAllPrices returns the instrument's full price history in one round
// trip. ISINs that JustETF cannot chart fall back to Yahoo Finance.
func (s *priceServiceImpl) FetchAllPrices(instrument string) (map[string]float64, error) {
	normalized := strings.ToUpper(strings.TrimSpace(instrument))
	if normalized == "" {
		return nil, fmt.Errorf("empty ticker/ISIN provided")
	}

	primary := s.registry.ForInstrument(normalized)
	history, err := primary.PriceHistory(normalized)
	if err != nil && utils.IsISIN(normalized) {
		logger.L.Warn("price history unavailable from primary source, trying fallback",
			"instrument", normalized, "source", primary.Name(), "error", err)
		return s.registry.Yahoo().PriceHistory(normalized)
	}
	return history, err
}

// GetCurrentPrices resolves quotes for every distinct instrument in the list.
// Instruments already cached cost nothing; actual fetches are spaced out by
// the configured delay to stay polite with the providers.
func (s *priceServiceImpl) GetCurrentPrices(instruments []string) map[string]models.PriceQuote {
	results := make(map[string]models.PriceQuote, len(instruments))
	fetched := 0
	for _, raw := range instruments {
		normalized := strings.ToUpper(strings.TrimSpace(raw))
		if normalized == "" {
			continue
		}
		if _, seen := results[normalized]; seen {
			continue
		}
		if cached, found := s.quotes.Get(normalized); found {
			results[normalized] = cached.(models.PriceQuote)
			continue
		}
		if fetched > 0 {
			time.Sleep(s.delay)
		}
		results[normalized] = s.GetCurrentPrice(normalized)
		fetched++
	}

	logger.L.Debug("batch price fetch finished",
		"requested", len(instruments), "resolved", len(results), "fetched", fetched)
	return results
}
