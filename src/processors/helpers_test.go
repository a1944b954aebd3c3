package processors

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// stubPriceLookup is a canned PriceLookup for engine tests. Quotes and
// histories are keyed by ISIN; anything unknown resolves to an invalid
// quote or a fetch error.
type stubPriceLookup struct {
	mu sync.Mutex

	current    map[string]float64
	histories  map[string]map[string]float64
	failISINs  map[string]bool
	fetchCalls map[string]int
}

func newStubPriceLookup() *stubPriceLookup {
	return &stubPriceLookup{
		current:    make(map[string]float64),
		histories:  make(map[string]map[string]float64),
		failISINs:  make(map[string]bool),
		fetchCalls: make(map[string]int),
	}
}

func (s *stubPriceLookup) GetCurrentPrice(isin string) models.PriceQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.current[isin]
	if !ok {
		return models.PriceQuote{Source: "stub", Currency: "EUR", Error: "no quote for " + isin}
	}
	return models.PriceQuote{Price: &price, Source: "stub", Currency: "EUR"}
}

func (s *stubPriceLookup) GetHistoricalPrice(isin string, date string) models.PriceQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.histories[isin]
	if !ok {
		return models.PriceQuote{Source: "stub", Currency: "EUR", Error: "no history for " + isin}
	}
	price, ok := history[date]
	if !ok {
		return models.PriceQuote{Source: "stub", Currency: "EUR", Error: "no price on " + date}
	}
	return models.PriceQuote{Price: &price, Source: "stub", Currency: "EUR", Date: date}
}

func (s *stubPriceLookup) FetchAllPrices(isin string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls[isin]++
	if s.failISINs[isin] {
		return nil, fmt.Errorf("provider unavailable for %s", isin)
	}
	history, ok := s.histories[isin]
	if !ok {
		return map[string]float64{}, nil
	}
	out := make(map[string]float64, len(history))
	for k, v := range history {
		out[k] = v
	}
	return out, nil
}

func (s *stubPriceLookup) fetchCount(isin string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls[isin]
}

func order(isin string, quantity, totalEUR float64, date string) models.Order {
	unit := 0.0
	if quantity > 0 {
		unit = totalEUR / quantity
	}
	return models.Order{
		ID:            fmt.Sprintf("%s-%s", isin, date),
		ISIN:          isin,
		Quantity:      quantity,
		UnitPriceEUR:  unit,
		TotalPriceEUR: totalEUR,
		OrderDate:     date,
	}
}
