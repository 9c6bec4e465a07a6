package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// layouts accepted for date path parameters, most specific first.
// Values without a zone are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate attempts to parse a date parameter with multiple formats
func ParseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, dateStr)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", dateStr, lastErr)
}

// MonthsBefore returns the instant n calendar months before t
func MonthsBefore(t time.Time, n int) time.Time {
	return t.AddDate(0, -n, 0)
}
