package validator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/tools/timeparser"
)

// ErrInvalid is the sentinel every validation failure unwraps to
var ErrInvalid = errors.New("invalid input")

// ValidationError describes why an input was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Validator handles request validation with configurable limits
type Validator struct {
	maxBatchSize int
}

// NewValidator creates a new validator; maxBatchSize <= 0 disables the batch limit
func NewValidator(maxBatchSize int) *Validator {
	return &Validator{
		maxBatchSize: maxBatchSize,
	}
}

// ObjectID rejects identifiers that are not 24 hex characters
func (v *Validator) ObjectID(id string) error {
	if !db.IsObjectID(id) {
		return invalid("", "Invalid ID format")
	}
	return nil
}

// ObjectIDs validates a whole id batch; one bad id rejects the batch
func (v *Validator) ObjectIDs(ids []string) error {
	if err := v.Batch(len(ids)); err != nil {
		return err
	}
	for _, id := range ids {
		if err := v.ObjectID(id); err != nil {
			return err
		}
	}
	return nil
}

// Batch checks the size of a bulk request
func (v *Validator) Batch(n int) error {
	if n == 0 {
		return invalid("", "request must contain at least one item")
	}
	if v.maxBatchSize > 0 && n > v.maxBatchSize {
		return invalid("", fmt.Sprintf("request contains %d items, maximum is %d", n, v.maxBatchSize))
	}
	return nil
}

// Page parses a 1-based page number
func (v *Validator) Page(raw string) (int, error) {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalid("", "Page must be a number")
	}
	if page < 1 {
		return 0, invalid("", "Page must be greater than zero")
	}
	return page, nil
}

// Date parses a single date parameter
func (v *Validator) Date(field, raw string) (time.Time, error) {
	t, err := timeparser.ParseDate(raw)
	if err != nil {
		return time.Time{}, invalid(field, "invalid date format")
	}
	return t, nil
}

// DateRange parses an inclusive [start, end] window
func (v *Validator) DateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := v.Date("startDate", startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := v.Date("endDate", endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, invalid("startDate", "must not be after endDate")
	}
	return start, end, nil
}

// Role parses a role name
func (v *Validator) Role(field, raw string) (db.Role, error) {
	role, err := db.ParseRole(raw)
	if err != nil {
		return db.RoleUnknown, invalid(field, fmt.Sprintf("unknown role %q", raw))
	}
	return role, nil
}

// Reading validates the measurement payload of a reading
func (v *Validator) Reading(r *db.Reading) error {
	if strings.TrimSpace(r.DeviceName) == "" {
		return invalid("deviceName", "must not be empty")
	}

	ranges := []struct {
		field    string
		value    *float64
		min, max float64
	}{
		{"latitude", r.Latitude, -90, 90},
		{"longitude", r.Longitude, -180, 180},
		{"humidity", r.Humidity, 0, 100},
		{"windDirection", r.WindDirection, 0, 360},
	}
	for _, rg := range ranges {
		if rg.value == nil {
			continue
		}
		if *rg.value < rg.min || *rg.value > rg.max {
			return invalid(rg.field, fmt.Sprintf("must be between %g and %g", rg.min, rg.max))
		}
	}

	if r.MaxWindSpeed != nil && *r.MaxWindSpeed < 0 {
		return invalid("maxWindSpeed", "negative value detected")
	}
	if r.Precipitation != nil && *r.Precipitation < 0 {
		return invalid("precipitation", "negative value detected")
	}
	return nil
}

// Readings validates a batch of readings; one bad record rejects the batch
func (v *Validator) Readings(readings []db.Reading) error {
	if err := v.Batch(len(readings)); err != nil {
		return err
	}
	for i := range readings {
		if err := v.Reading(&readings[i]); err != nil {
			return fmt.Errorf("reading %d: %w", i, err)
		}
	}
	return nil
}
