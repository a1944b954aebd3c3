package processors

import (
	"sort"
	"sync"
	"time"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/utils"
)

// pricePoint is one dated close inside an instrument's history.
type pricePoint struct {
	date  time.Time
	price float64
}

// PriceHistoryCache holds full per-instrument price histories for the
// duration of one valuation computation. Prefetch populates it with one
// remote fetch per instrument, after which every monthly lookup is served
// in memory. The cache is call-scoped: build, use, Clear.
type PriceHistoryCache struct {
	mu        sync.Mutex
	histories map[string][]pricePoint
	workers   int
}

// NewPriceHistoryCache creates an empty cache whose Prefetch fans out at
// most workers concurrent fetches.
func NewPriceHistoryCache(workers int) *PriceHistoryCache {
	if workers < 1 {
		workers = 1
	}
	return &PriceHistoryCache{
		histories: make(map[string][]pricePoint),
		workers:   workers,
	}
}

// Prefetch loads the complete price history of every distinct instrument
// through a bounded worker pool and blocks until the whole batch has
// settled. A failed fetch leaves that instrument with an empty history and
// never affects the others. Each instrument's history is built by exactly
// one worker; only the shared map insert is guarded.
func (c *PriceHistoryCache) Prefetch(lookup PriceLookup, isins []string) {
	distinct := make([]string, 0, len(isins))
	seen := make(map[string]bool, len(isins))
	for _, isin := range isins {
		if isin == "" || seen[isin] {
			continue
		}
		seen[isin] = true
		distinct = append(distinct, isin)
	}
	if len(distinct) == 0 {
		return
	}

	start := time.Now()
	logger.L.Info("Prefetching price histories", "instruments", len(distinct), "workers", c.workers)

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

	for _, isin := range distinct {
		sem <- struct{}{}
		wg.Add(1)
		go func(isin string) {
			defer wg.Done()
			defer func() { <-sem }()

			history := c.fetchOne(lookup, isin)

			c.mu.Lock()
			c.histories[isin] = history
			c.mu.Unlock()
		}(isin)
	}
	wg.Wait()

	logger.L.Info("Price history prefetch complete",
		"instruments", len(distinct),
		"durationMs", time.Since(start).Milliseconds())
}

// fetchOne retrieves and sorts one instrument's history. Failures degrade
// to an empty history so later lookups simply miss.
func (c *PriceHistoryCache) fetchOne(lookup PriceLookup, isin string) []pricePoint {
	raw, err := lookup.FetchAllPrices(isin)
	if err != nil {
		logger.L.Warn("Price history fetch failed, instrument will have no historical prices",
			"isin", isin, "error", err)
		return nil
	}

	history := make([]pricePoint, 0, len(raw))
	for dateStr, price := range raw {
		date, parseErr := time.Parse(utils.DefaultDateFormat, dateStr)
		if parseErr != nil {
			continue
		}
		history = append(history, pricePoint{date: date, price: price})
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].date.Before(history[j].date)
	})
	return history
}

// Lookup returns the price at the greatest cached date less than or equal
// to the requested date. Returns (0, false) when the instrument is unknown
// or its history starts after the date.
func (c *PriceHistoryCache) Lookup(isin string, date time.Time) (float64, bool) {
	c.mu.Lock()
	history := c.histories[isin]
	c.mu.Unlock()

	if len(history) == 0 {
		return 0, false
	}

	// Index of the first point strictly after the date; its predecessor is
	// the close in effect.
	idx := sort.Search(len(history), func(i int) bool {
		return history[i].date.After(date)
	})
	if idx == 0 {
		return 0, false
	}
	return history[idx-1].price, true
}

// Has reports whether a non-empty history is cached for the instrument.
func (c *PriceHistoryCache) Has(isin string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.histories[isin]) > 0
}

// Clear empties the cache.
func (c *PriceHistoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histories = make(map[string][]pricePoint)
}
