// backend/src/services/errors.go
package services

import "errors"

// Sentinel errors shared across the service layer. Handlers translate these
// into HTTP status codes; everything else is wrapped with context.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidOrderPayload = errors.New("invalid order payload")
	ErrPriceUnavailable    = errors.New("price unavailable")
)
