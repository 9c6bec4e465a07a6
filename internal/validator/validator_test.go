package validator_test

import (
	"errors"
	"testing"
	"time"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/validator"
)

const testMaxBatchSize = 3

func float(v float64) *float64 { return &v }

func TestObjectID_Valid(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	if err := v.ObjectID("65f1c0a2b3c4d5e6f7a8b9c0"); err != nil {
		t.Errorf("Expected valid id, got %v", err)
	}
}

func TestObjectID_Invalid(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	for _, id := range []string{"", "not-24-hex-chars", "65f1c0a2b3c4d5e6f7a8b9cz", "65f1c0a2b3c4d5e6f7a8b9c0aa"} {
		err := v.ObjectID(id)
		if !errors.Is(err, validator.ErrInvalid) {
			t.Errorf("Expected ErrInvalid for %q, got %v", id, err)
		}
	}
}

func TestObjectIDs_OneBadIDRejectsBatch(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	err := v.ObjectIDs([]string{"65f1c0a2b3c4d5e6f7a8b9c0", "bad"})
	if !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}

func TestObjectIDs_BatchLimit(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	ids := []string{
		"65f1c0a2b3c4d5e6f7a8b9c0",
		"65f1c0a2b3c4d5e6f7a8b9c1",
		"65f1c0a2b3c4d5e6f7a8b9c2",
		"65f1c0a2b3c4d5e6f7a8b9c3",
	}
	if err := v.ObjectIDs(ids); err == nil {
		t.Error("Expected error for batch over the limit")
	}
	if err := v.ObjectIDs(nil); err == nil {
		t.Error("Expected error for empty batch")
	}
}

func TestPage(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	page, err := v.Page("3")
	if err != nil || page != 3 {
		t.Errorf("Expected page 3, got %d (%v)", page, err)
	}

	for _, raw := range []string{"0", "-1", "abc", ""} {
		if _, err := v.Page(raw); !errors.Is(err, validator.ErrInvalid) {
			t.Errorf("Expected ErrInvalid for %q, got %v", raw, err)
		}
	}
}

func TestDateRange(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	start, end, err := v.DateRange("2021-05-01", "2021-05-31T23:59:59Z")
	if err != nil {
		t.Fatalf("Failed to parse range: %v", err)
	}
	if !start.Equal(time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected start %v", start)
	}
	if !end.Equal(time.Date(2021, 5, 31, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("Unexpected end %v", end)
	}
}

func TestDateRange_Reversed(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	if _, _, err := v.DateRange("2021-06-01", "2021-05-01"); !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("Expected ErrInvalid for reversed range, got %v", err)
	}
}

func TestRole(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	role, err := v.Role("role", "Teacher")
	if err != nil || role != db.RoleTeacher {
		t.Errorf("Expected teacher, got %v (%v)", role, err)
	}
	if _, err := v.Role("role", "superuser"); !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}

func TestReading_Valid(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	reading := &db.Reading{
		DeviceName:  "Woodford_Sensor",
		Latitude:    float(152.77),
		Longitude:   float(-26.95),
		Temperature: float(22.74),
	}
	// latitude outside [-90, 90]
	if err := v.Reading(reading); err == nil {
		t.Error("Expected error for latitude out of range")
	}

	reading.Latitude = float(-26.95)
	reading.Longitude = float(152.77)
	if err := v.Reading(reading); err != nil {
		t.Errorf("Expected valid reading, got %v", err)
	}
}

func TestReading_EmptyDeviceName(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	if err := v.Reading(&db.Reading{DeviceName: "  "}); !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}

func TestReadings_OneBadRecordRejectsBatch(t *testing.T) {
	v := validator.NewValidator(testMaxBatchSize)

	readings := []db.Reading{
		{DeviceName: "Noosa_Sensor"},
		{DeviceName: "Noosa_Sensor", Precipitation: float(-1)},
	}
	if err := v.Readings(readings); !errors.Is(err, validator.ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}
