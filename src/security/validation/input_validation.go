package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 8
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateUsername checks length and charset of a new username.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}

// ValidateEmail checks the rough shape of an email address. Deliverability
// is proven by the verification mail, not here.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum length for local accounts.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// ValidateInstrument checks an instrument identifier: a well-formed ISIN,
// or a short ticker symbol for instruments JustETF does not carry.
func ValidateInstrument(identifier string) error {
	identifier = StripUnprintable(strings.TrimSpace(identifier))
	if identifier == "" {
		return fmt.Errorf("Missing field: isin")
	}
	if utils.IsISIN(identifier) {
		return nil
	}
	if len(identifier) > 20 {
		return fmt.Errorf("Invalid instrument identifier: %s", identifier)
	}
	return nil
}

// ValidateOrderPayload checks a create-order request before any pricing
// happens. Messages are returned to the client verbatim.
func ValidateOrderPayload(req models.CreateOrderRequest) error {
	if err := ValidateInstrument(req.ISIN); err != nil {
		return err
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("Quantity must be positive")
	}
	if req.Date != "" {
		parsed, err := time.Parse(utils.DefaultDateFormat, req.Date)
		if err != nil {
			return fmt.Errorf("Invalid date format, expected YYYY-MM-DD")
		}
		if parsed.After(utils.Today()) {
			return fmt.Errorf("Order date cannot be in the future")
		}
	}
	if req.UnitPriceEUR != nil && *req.UnitPriceEUR < 0 {
		return fmt.Errorf("Unit price cannot be negative")
	}
	if req.TotalPriceEUR != nil && *req.TotalPriceEUR < 0 {
		return fmt.Errorf("Total price cannot be negative")
	}
	return nil
}
