package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/repository"
	"github.com/septivank/weather-readings-api/internal/validator"
	"github.com/septivank/weather-readings-api/tools/timeparser"
	"go.uber.org/zap"
)

// precipitationWindowMonths bounds the maximum precipitation lookup
const precipitationWindowMonths = 5

// ReadingService implements reading queries and writes
type ReadingService struct {
	readings  repository.ReadingRepository
	validator *validator.Validator
	events    EventPublisher
	pageSize  int
	now       func() time.Time
	logger    *zap.Logger
}

// NewReadingService creates a new reading service
func NewReadingService(
	readings repository.ReadingRepository,
	validator *validator.Validator,
	events EventPublisher,
	pageSize int,
	logger *zap.Logger,
) *ReadingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ReadingService{
		readings:  readings,
		validator: validator,
		events:    events,
		pageSize:  pageSize,
		now:       time.Now,
		logger:    logger,
	}
}

// PageSize is the number of readings per page
func (s *ReadingService) PageSize() int {
	return s.pageSize
}

// Get returns one reading by id
func (s *ReadingService) Get(ctx context.Context, id string) (*db.Reading, error) {
	reading, err := s.readings.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return reading, nil
}

// Page returns the given 1-based page; an empty page is ErrNotFound
func (s *ReadingService) Page(ctx context.Context, page int) ([]db.Reading, error) {
	readings, err := s.readings.GetByPage(ctx, page, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get readings page: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNotFound
	}
	return readings, nil
}

// ByDateRange returns readings inside [start, end]; none is ErrNotFound
func (s *ReadingService) ByDateRange(ctx context.Context, start, end time.Time) ([]db.Reading, error) {
	readings, err := s.readings.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get readings by date range: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNotFound
	}
	return readings, nil
}

// stamp prepares a reading for storage with the server time
func (s *ReadingService) stamp(r db.Reading) db.Reading {
	r.DeviceName = strings.TrimSpace(r.DeviceName)
	r.Time = s.now().UTC()
	return r
}

// Create stores one reading stamped with the current time
func (s *ReadingService) Create(ctx context.Context, in db.Reading) (*db.Reading, error) {
	if err := s.validator.Reading(&in); err != nil {
		return nil, err
	}

	reading := s.stamp(in)
	created, err := s.readings.Create(ctx, &reading)
	if err != nil {
		return nil, fmt.Errorf("failed to create reading: %w", err)
	}

	publishCreated(ctx, s.events, s.logger, []db.Reading{*created})
	return created, nil
}

// CreateMany stores a batch; each reading is stamped as it is built
func (s *ReadingService) CreateMany(ctx context.Context, in []db.Reading) ([]db.Reading, error) {
	if err := s.validator.Readings(in); err != nil {
		return nil, err
	}

	readings := make([]db.Reading, 0, len(in))
	for _, r := range in {
		readings = append(readings, s.stamp(r))
	}

	created, err := s.readings.CreateMany(ctx, readings)
	if err != nil {
		return nil, fmt.Errorf("failed to create readings: %w", err)
	}

	publishCreated(ctx, s.events, s.logger, created)
	return created, nil
}

// Update replaces a reading and re-stamps its time
func (s *ReadingService) Update(ctx context.Context, in db.Reading) (*db.Reading, error) {
	if err := s.validator.Reading(&in); err != nil {
		return nil, err
	}

	reading := s.stamp(in)
	res, err := s.readings.Update(ctx, &reading)
	if err != nil {
		return nil, fmt.Errorf("failed to update reading: %w", err)
	}
	if res.Matched == 0 {
		return nil, ErrNotFound
	}
	return &reading, nil
}

// UpdateMany replaces each reading by id; nothing modified is ErrNotFound
func (s *ReadingService) UpdateMany(ctx context.Context, in []db.Reading) (db.UpdateResult, error) {
	if err := s.validator.Readings(in); err != nil {
		return db.UpdateResult{}, err
	}

	readings := make([]db.Reading, 0, len(in))
	for _, r := range in {
		readings = append(readings, s.stamp(r))
	}

	res, err := s.readings.UpdateMany(ctx, readings)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update readings: %w", err)
	}
	if res.Failed > 0 {
		s.logger.Warn("bulk reading update partially failed",
			zap.Int64("failed", res.Failed),
			zap.Int64("modified", res.Modified))
	}
	if res.Modified == 0 {
		return res, ErrNotFound
	}
	return res, nil
}

// Delete removes one reading
func (s *ReadingService) Delete(ctx context.Context, id string) error {
	n, err := s.readings.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete reading: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every listed reading that exists and returns the count
func (s *ReadingService) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	n, err := s.readings.DeleteManyByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete readings: %w", err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// MaxPrecipLastFiveMonths returns the device's wettest reading of the last
// five months. Which of several tied readings is returned is unspecified.
func (s *ReadingService) MaxPrecipLastFiveMonths(ctx context.Context, deviceName string) (*db.PrecipitationPeak, error) {
	since := timeparser.MonthsBefore(s.now().UTC(), precipitationWindowMonths)

	peak, err := s.readings.GetMaxPrecipSince(ctx, deviceName, since)
	if err != nil {
		return nil, notFound(err)
	}
	return peak, nil
}

// DeviceByDate returns the device's conditions at its first reading at or after at
func (s *ReadingService) DeviceByDate(ctx context.Context, deviceName string, at time.Time) (*db.DeviceConditions, error) {
	cond, err := s.readings.GetDeviceByDate(ctx, deviceName, at)
	if err != nil {
		return nil, notFound(err)
	}
	return cond, nil
}

// MaxTempByDateRange returns per-device maximum temperatures inside [start, end]
func (s *ReadingService) MaxTempByDateRange(ctx context.Context, start, end time.Time) ([]db.DeviceMaxTemperature, error) {
	rows, err := s.readings.GetMaxTempByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get max temperature: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

// UpdatePrecip sets the precipitation of one reading
func (s *ReadingService) UpdatePrecip(ctx context.Context, id string, precipitation float64) (db.UpdateResult, error) {
	if precipitation < 0 {
		return db.UpdateResult{}, fmt.Errorf("%w: precipitation: negative value detected", ErrValidation)
	}

	res, err := s.readings.UpdatePrecipByID(ctx, id, precipitation)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update precipitation: %w", err)
	}
	if res.Matched == 0 {
		return res, ErrNotFound
	}
	return res, nil
}
