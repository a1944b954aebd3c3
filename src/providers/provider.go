// backend/src/providers/provider.go
package providers

import (
	"database/sql"
	"time"

	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/providers/justetf"
	"github.com/username/investfolio/backend/src/providers/yahoo"
	"github.com/username/investfolio/backend/src/utils"
)

// Provider answers price questions for one family of instruments.
// Failed lookups return a quote carrying an error message rather than a Go
// error, so callers can surface the reason per instrument.
type Provider interface {
	Name() string
	CurrentQuote(instrument string) models.PriceQuote
	HistoricalQuote(instrument string, target time.Time) models.PriceQuote
	PriceHistory(instrument string) (map[string]float64, error)
}

// Registry owns the configured providers and routes instruments to them.
type Registry struct {
	justETF *justetf.Client
	yahoo   *yahoo.Client
}

// NewRegistry builds the provider set. The database handle is used by the
// Yahoo client to persist ISIN-to-ticker resolutions.
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{
		justETF: justetf.NewClient(),
		yahoo:   yahoo.NewClient(db),
	}
}

// ForInstrument picks the primary provider for an identifier. ISINs are
// served by JustETF, ticker symbols by Yahoo Finance.
func (r *Registry) ForInstrument(instrument string) Provider {
	if utils.IsISIN(instrument) {
		return r.justETF
	}
	return r.yahoo
}

// Yahoo exposes the Yahoo client directly; the price service uses it as the
// fallback source when JustETF cannot serve an ISIN.
func (r *Registry) Yahoo() Provider {
	return r.yahoo
}
