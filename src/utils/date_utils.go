package utils

import (
	"log"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// ParseDate parses a date string using the default format.
// Logs an error and returns zero time if parsing fails.
func ParseDate(dateStr string) time.Time {
	t, err := time.Parse(DefaultDateFormat, dateStr)
	if err != nil {
		log.Printf("Error parsing date '%s' with format '%s': %v. Returning zero time.", dateStr, DefaultDateFormat, err)
		return time.Time{} // Return zero time on error
	}
	return t
}

// FormatDate renders a time as a plain calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DefaultDateFormat)
}

// Today returns the current calendar date, UTC, with no time component.
// All valuation math is date-granular, so the time of day must never leak in.
func Today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first calendar day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthlyBoundaries returns the first day of every month from start's month
// through end, inclusive of end's month.
func MonthlyBoundaries(start, end time.Time) []time.Time {
	var boundaries []time.Time
	for cur := MonthStart(start); !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		boundaries = append(boundaries, cur)
	}
	return boundaries
}
