// backend/src/fx/fx.go
package fx

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/username/investfolio/backend/src/logger"
	"github.com/username/investfolio/backend/src/models"
)

type observation struct {
	date time.Time
	rate float64
}

// Observations grouped per currency, sorted by date ascending. Populated
// once at startup by LoadHistoricalRates and read-only afterwards.
var historicalRates map[string][]observation
var ratesLoaded bool = false

// LoadHistoricalRates loads the ECB reference rates from the specified file path.
// This should be called once from main.go after config is loaded.
func LoadHistoricalRates(filePath string) error {
	logger.L.Info("Loading historical exchange rates", "path", filePath)
	file, err := os.ReadFile(filePath)
	if err != nil {
		logger.L.Error("Error reading historical exchange rate file", "path", filePath, "error", err)
		return fmt.Errorf("error reading historical exchange rate file '%s': %w", filePath, err)
	}

	var raw models.ExchangeRate
	if err := json.Unmarshal(file, &raw); err != nil {
		logger.L.Error("Error unmarshalling historical exchange rates", "path", filePath, "error", err)
		return fmt.Errorf("error unmarshalling historical exchange rates from '%s': %w", filePath, err)
	}

	rates := make(map[string][]observation)
	skipped := 0
	for _, obs := range raw.Root.Obs {
		date, err := time.Parse("2006-01-02", obs.TimePeriod)
		if err != nil {
			skipped++
			continue
		}
		value, err := strconv.ParseFloat(obs.ObsValue, 64)
		if err != nil {
			logger.L.Warn("Invalid exchange rate value in data", "currency", obs.Ccy, "date", obs.TimePeriod, "value", obs.ObsValue)
			skipped++
			continue
		}
		rates[obs.Ccy] = append(rates[obs.Ccy], observation{date: date, rate: value})
	}
	for ccy := range rates {
		sort.Slice(rates[ccy], func(i, j int) bool {
			return rates[ccy][i].date.Before(rates[ccy][j].date)
		})
	}

	historicalRates = rates
	ratesLoaded = true
	logger.L.Info("Historical exchange rates loaded successfully.",
		"path", filePath,
		"currencies", len(rates),
		"observationCount", len(raw.Root.Obs),
		"skipped", skipped)
	return nil
}

// Rate returns the EUR exchange rate for a currency on a given date. When no
// observation exists for that exact date (weekends, holidays), the most
// recent earlier observation is carried forward.
func Rate(currency string, date time.Time) (float64, error) {
	if currency == "EUR" {
		return 1.0, nil
	}
	if !ratesLoaded {
		// This is a fallback, ideally LoadHistoricalRates is called at startup.
		logger.L.Error("Attempted to get exchange rate before rates were loaded.")
		return 0, fmt.Errorf("historical exchange rates not loaded")
	}

	obs, ok := historicalRates[currency]
	if !ok || len(obs) == 0 {
		logger.L.Warn("No exchange rate observations for currency", "currency", currency)
		return 0, fmt.Errorf("no exchange rate observations for %s", currency)
	}

	// Index of the first observation strictly after the requested date; the
	// one before it is the rate in effect.
	idx := sort.Search(len(obs), func(i int) bool {
		return obs[i].date.After(date)
	})
	if idx == 0 {
		logger.L.Warn("Exchange rate not found", "currency", currency, "date", date.Format("2006-01-02"))
		return 0, fmt.Errorf("exchange rate not found for %s on %s", currency, date.Format("2006-01-02"))
	}
	return obs[idx-1].rate, nil
}
