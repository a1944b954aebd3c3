package utils

import (
	"regexp"
	"strings"
)

var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// IsISIN reports whether the identifier looks like an ISIN code.
// Anything else is treated as a plain ticker symbol by the price lookup.
func IsISIN(identifier string) bool {
	return isinPattern.MatchString(strings.ToUpper(strings.TrimSpace(identifier)))
}
