package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/providers"
	"github.com/username/investfolio/backend/src/utils"
)

// fakeProvider is a canned providers.Provider that counts lookups.
type fakeProvider struct {
	mu        sync.Mutex
	name      string
	quotes    map[string]models.PriceQuote
	dated     map[string]map[string]models.PriceQuote
	histories map[string]map[string]float64
	histErr   error

	currentCalls int
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{
		name:      name,
		quotes:    make(map[string]models.PriceQuote),
		dated:     make(map[string]map[string]models.PriceQuote),
		histories: make(map[string]map[string]float64),
	}
}

func (p *fakeProvider) withQuote(instrument string, price float64) *fakeProvider {
	p.quotes[instrument] = models.PriceQuote{Price: &price, Source: p.name, Currency: "EUR"}
	return p
}

func (p *fakeProvider) withDatedQuote(instrument, date string, price float64) *fakeProvider {
	if p.dated[instrument] == nil {
		p.dated[instrument] = make(map[string]models.PriceQuote)
	}
	p.dated[instrument][date] = models.PriceQuote{Price: &price, Source: p.name, Currency: "EUR", Date: date}
	return p
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) CurrentQuote(instrument string) models.PriceQuote {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentCalls++
	if quote, ok := p.quotes[instrument]; ok {
		return quote
	}
	return models.PriceQuote{Source: p.name, Error: "no quote for " + instrument}
}

func (p *fakeProvider) HistoricalQuote(instrument string, target time.Time) models.PriceQuote {
	p.mu.Lock()
	defer p.mu.Unlock()
	if quote, ok := p.dated[instrument][target.Format(utils.DefaultDateFormat)]; ok {
		return quote
	}
	return models.PriceQuote{Source: p.name, Error: "no dated quote for " + instrument}
}

func (p *fakeProvider) PriceHistory(instrument string) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.histErr != nil {
		return nil, p.histErr
	}
	history, ok := p.histories[instrument]
	if !ok {
		return map[string]float64{}, nil
	}
	return history, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentCalls
}

// fakeSource routes ISINs to the primary provider and everything else to
// the Yahoo stand-in, the way the real registry does.
type fakeSource struct {
	primary *fakeProvider
	yahoo   *fakeProvider
}

func (s fakeSource) ForInstrument(instrument string) providers.Provider {
	if utils.IsISIN(instrument) {
		return s.primary
	}
	return s.yahoo
}

func (s fakeSource) Yahoo() providers.Provider { return s.yahoo }

func newTestPriceService(source fakeSource) *priceServiceImpl {
	return &priceServiceImpl{
		registry: source,
		quotes:   cache.New(time.Minute, time.Minute),
		delay:    0,
	}
}

func TestGetCurrentPrice_EmptyInstrument(t *testing.T) {
	svc := newTestPriceService(fakeSource{primary: newFakeProvider("justetf"), yahoo: newFakeProvider("yahoo")})

	quote := svc.GetCurrentPrice("   ")
	assert.False(t, quote.IsValid())
	assert.Equal(t, "Error", quote.Source)
	assert.Equal(t, "Empty ticker/ISIN provided", quote.Error)
}

func TestGetCurrentPrice_NormalizesAndCaches(t *testing.T) {
	primary := newFakeProvider("justetf").withQuote("IE00B4L5Y983", 100.5)
	svc := newTestPriceService(fakeSource{primary: primary, yahoo: newFakeProvider("yahoo")})

	quote := svc.GetCurrentPrice("  ie00b4l5y983 ")
	require.True(t, quote.IsValid())
	assert.Equal(t, 100.5, *quote.Price)
	assert.Equal(t, "justetf", quote.Source)

	svc.GetCurrentPrice("IE00B4L5Y983")
	assert.Equal(t, 1, primary.calls(), "second lookup should hit the cache")
}

func TestGetCurrentPrice_ISINFallsBackToYahoo(t *testing.T) {
	primary := newFakeProvider("justetf")
	yahoo := newFakeProvider("yahoo").withQuote("US0378331005", 182.3)
	svc := newTestPriceService(fakeSource{primary: primary, yahoo: yahoo})

	quote := svc.GetCurrentPrice("US0378331005")
	require.True(t, quote.IsValid())
	assert.Equal(t, "yahoo", quote.Source)
	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 1, yahoo.calls())
}

func TestGetCurrentPrice_TickerGoesStraightToYahoo(t *testing.T) {
	primary := newFakeProvider("justetf")
	yahoo := newFakeProvider("yahoo")
	svc := newTestPriceService(fakeSource{primary: primary, yahoo: yahoo})

	quote := svc.GetCurrentPrice("VWCE")
	assert.False(t, quote.IsValid())
	assert.Equal(t, "Price unavailable from all sources", quote.Error)
	assert.Equal(t, 0, primary.calls())
	assert.Equal(t, 1, yahoo.calls(), "tickers have no second source to fall back to")
}

func TestGetCurrentPrice_FailuresAreNotCached(t *testing.T) {
	primary := newFakeProvider("justetf")
	yahoo := newFakeProvider("yahoo")
	svc := newTestPriceService(fakeSource{primary: primary, yahoo: yahoo})

	quote := svc.GetCurrentPrice("IE00B4L5Y983")
	assert.False(t, quote.IsValid())

	yahoo.withQuote("IE00B4L5Y983", 99.0)
	quote = svc.GetCurrentPrice("IE00B4L5Y983")
	require.True(t, quote.IsValid())
	assert.Equal(t, 99.0, *quote.Price)
}

func TestGetHistoricalPrice(t *testing.T) {
	primary := newFakeProvider("justetf").withDatedQuote("IE00B4L5Y983", "2024-03-15", 98.7)
	yahoo := newFakeProvider("yahoo").withDatedQuote("IE00B4L5Y983", "2024-03-15", 55.0)
	svc := newTestPriceService(fakeSource{primary: primary, yahoo: yahoo})

	quote := svc.GetHistoricalPrice("ie00b4l5y983", "2024-03-15")
	require.True(t, quote.IsValid())
	assert.Equal(t, 98.7, *quote.Price)
	assert.Equal(t, "2024-03-15", quote.Date)

	// Dated lookups consult the primary source only.
	quote = svc.GetHistoricalPrice("IE00B4L5Y983", "2024-03-18")
	assert.False(t, quote.IsValid())
}

func TestGetHistoricalPrice_InvalidDate(t *testing.T) {
	svc := newTestPriceService(fakeSource{primary: newFakeProvider("justetf"), yahoo: newFakeProvider("yahoo")})

	quote := svc.GetHistoricalPrice("IE00B4L5Y983", "15/03/2024")
	assert.False(t, quote.IsValid())
	assert.Equal(t, "Invalid date format, expected YYYY-MM-DD", quote.Error)
}

func TestFetchAllPrices_FallsBackToYahooForISINs(t *testing.T) {
	primary := newFakeProvider("justetf")
	primary.histErr = errors.New("chart unavailable")
	yahoo := newFakeProvider("yahoo")
	yahoo.histories["IE00B4L5Y983"] = map[string]float64{"2024-03-15": 98.7, "2024-03-18": 99.1}
	svc := newTestPriceService(fakeSource{primary: primary, yahoo: yahoo})

	history, err := svc.FetchAllPrices("IE00B4L5Y983")
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, 98.7, history["2024-03-15"])

	_, err = svc.FetchAllPrices("")
	assert.Error(t, err)
}

func TestGetCurrentPrices_DeduplicatesAndUsesCache(t *testing.T) {
	primary := newFakeProvider("justetf").
		withQuote("IE00B4L5Y983", 100).
		withQuote("LU1681043599", 50)
	svc := newTestPriceService(fakeSource{primary: primary, yahoo: newFakeProvider("yahoo")})

	svc.GetCurrentPrice("IE00B4L5Y983")
	require.Equal(t, 1, primary.calls())

	quotes := svc.GetCurrentPrices([]string{
		"ie00b4l5y983", "IE00B4L5Y983", "", "  ", "lu1681043599",
	})

	require.Len(t, quotes, 2)
	assert.True(t, quotes["IE00B4L5Y983"].IsValid())
	assert.True(t, quotes["LU1681043599"].IsValid())
	assert.Equal(t, 2, primary.calls(), "cached instrument must not be fetched again")
}
