package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/weather-readings-api/internal/db"
)

const readingColumns = `id, device_name, time, precipitation, latitude, longitude, atmospheric_pressure,
	humidity, max_wind_speed, solar_radiation, temperature, vapor_pressure, wind_direction`

// PostgresReadingRepository stores readings in the readings table
type PostgresReadingRepository struct {
	pool DBTX
}

// NewPostgresReadingRepository creates a new PostgreSQL reading store
func NewPostgresReadingRepository(pool DBTX) *PostgresReadingRepository {
	return &PostgresReadingRepository{pool: pool}
}

func scanReading(row pgx.Row) (*db.Reading, error) {
	var reading db.Reading
	err := row.Scan(
		&reading.ID,
		&reading.DeviceName,
		&reading.Time,
		&reading.Precipitation,
		&reading.Latitude,
		&reading.Longitude,
		&reading.AtmosphericPressure,
		&reading.Humidity,
		&reading.MaxWindSpeed,
		&reading.SolarRadiation,
		&reading.Temperature,
		&reading.VaporPressure,
		&reading.WindDirection,
	)
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *PostgresReadingRepository) queryMany(ctx context.Context, query string, args ...any) ([]db.Reading, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := []db.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// GetByID retrieves a reading by id
func (r *PostgresReadingRepository) GetByID(ctx context.Context, id string) (*db.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE id = $1`

	reading, err := scanReading(r.pool.QueryRow(ctx, query, lowerID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}
	return reading, nil
}

// GetByPage returns page (1-based) of size readings ordered by id
func (r *PostgresReadingRepository) GetByPage(ctx context.Context, page, size int) ([]db.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings ORDER BY id LIMIT $1 OFFSET $2`
	return r.queryMany(ctx, query, size, (page-1)*size)
}

// GetByDateRange returns readings with start <= time <= end
func (r *PostgresReadingRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]db.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE time >= $1 AND time <= $2 ORDER BY time`
	return r.queryMany(ctx, query, start, end)
}

const insertReadingQuery = `
	INSERT INTO readings (` + readingColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func readingArgs(id string, reading *db.Reading) []any {
	return []any{
		id,
		reading.DeviceName,
		reading.Time,
		reading.Precipitation,
		reading.Latitude,
		reading.Longitude,
		reading.AtmosphericPressure,
		reading.Humidity,
		reading.MaxWindSpeed,
		reading.SolarRadiation,
		reading.Temperature,
		reading.VaporPressure,
		reading.WindDirection,
	}
}

// Create inserts a reading under a new id
func (r *PostgresReadingRepository) Create(ctx context.Context, reading *db.Reading) (*db.Reading, error) {
	id := db.NewObjectID()
	if _, err := r.pool.Exec(ctx, insertReadingQuery, readingArgs(id, reading)...); err != nil {
		return nil, fmt.Errorf("failed to insert reading: %w", err)
	}
	created := *reading
	created.ID = id
	return &created, nil
}

// CreateMany inserts readings under new ids in one transaction
func (r *PostgresReadingRepository) CreateMany(ctx context.Context, readings []db.Reading) ([]db.Reading, error) {
	if len(readings) == 0 {
		return []db.Reading{}, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created := make([]db.Reading, 0, len(readings))
	for i := range readings {
		id := db.NewObjectID()
		if _, err := tx.Exec(ctx, insertReadingQuery, readingArgs(id, &readings[i])...); err != nil {
			return nil, fmt.Errorf("failed to insert reading: %w", err)
		}
		rd := readings[i]
		rd.ID = id
		created = append(created, rd)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

const replaceReadingQuery = `
	UPDATE readings
	SET device_name = $2, time = $3, precipitation = $4, latitude = $5, longitude = $6,
		atmospheric_pressure = $7, humidity = $8, max_wind_speed = $9, solar_radiation = $10,
		temperature = $11, vapor_pressure = $12, wind_direction = $13
	WHERE id = $1
`

// Update replaces the stored reading with the same id
func (r *PostgresReadingRepository) Update(ctx context.Context, reading *db.Reading) (db.UpdateResult, error) {
	tag, err := r.pool.Exec(ctx, replaceReadingQuery, readingArgs(lowerID(reading.ID), reading)...)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update reading: %w", err)
	}
	n := tag.RowsAffected()
	return db.UpdateResult{Matched: n, Modified: n}, nil
}

// UpdateMany replaces each reading by id; a failing record does not stop the others
func (r *PostgresReadingRepository) UpdateMany(ctx context.Context, readings []db.Reading) (db.UpdateResult, error) {
	var (
		total   db.UpdateResult
		lastErr error
	)
	for i := range readings {
		res, err := r.Update(ctx, &readings[i])
		if err != nil {
			total.Failed++
			lastErr = err
			continue
		}
		total.Matched += res.Matched
		total.Modified += res.Modified
	}
	if total.Matched == 0 && lastErr != nil {
		return db.UpdateResult{}, lastErr
	}
	return total, nil
}

// DeleteByID removes a reading, returning the deleted count
func (r *PostgresReadingRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM readings WHERE id = $1`, lowerID(id))
	if err != nil {
		return 0, fmt.Errorf("failed to delete reading: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteManyByIDs removes every listed reading that exists
func (r *PostgresReadingRepository) DeleteManyByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM readings WHERE id = ANY($1)`, lowerIDs(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete readings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetMaxPrecipSince returns the device's highest-precipitation reading at or after since.
// Ties resolve to whichever row the planner returns first.
func (r *PostgresReadingRepository) GetMaxPrecipSince(ctx context.Context, deviceName string, since time.Time) (*db.PrecipitationPeak, error) {
	query := `
		SELECT device_name, time, precipitation
		FROM readings
		WHERE device_name = $1 AND time >= $2
		ORDER BY precipitation DESC NULLS LAST
		LIMIT 1
	`

	var peak db.PrecipitationPeak
	err := r.pool.QueryRow(ctx, query, deviceName, since).Scan(&peak.DeviceName, &peak.Time, &peak.Precipitation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query max precipitation: %w", err)
	}
	return &peak, nil
}

// GetDeviceByDate returns the conditions of the device's first reading at or after at
func (r *PostgresReadingRepository) GetDeviceByDate(ctx context.Context, deviceName string, at time.Time) (*db.DeviceConditions, error) {
	query := `
		SELECT temperature, atmospheric_pressure, solar_radiation, precipitation
		FROM readings
		WHERE device_name = $1 AND time >= $2
		ORDER BY time
		LIMIT 1
	`

	var cond db.DeviceConditions
	err := r.pool.QueryRow(ctx, query, deviceName, at).Scan(
		&cond.Temperature,
		&cond.AtmosphericPressure,
		&cond.SolarRadiation,
		&cond.Precipitation,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query device conditions: %w", err)
	}
	return &cond, nil
}

// GetMaxTempByDateRange returns each device's maximum temperature inside
// [start, end] with the time of that reading
func (r *PostgresReadingRepository) GetMaxTempByDateRange(ctx context.Context, start, end time.Time) ([]db.DeviceMaxTemperature, error) {
	query := `
		SELECT DISTINCT ON (device_name) device_name, temperature, time
		FROM readings
		WHERE time >= $1 AND time <= $2
		ORDER BY device_name, temperature DESC NULLS LAST
	`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query max temperature: %w", err)
	}
	defer rows.Close()

	result := []db.DeviceMaxTemperature{}
	for rows.Next() {
		var row db.DeviceMaxTemperature
		if err := rows.Scan(&row.DeviceName, &row.Temperature, &row.Time); err != nil {
			return nil, fmt.Errorf("failed to scan max temperature: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdatePrecipByID sets only the precipitation column of one reading
func (r *PostgresReadingRepository) UpdatePrecipByID(ctx context.Context, id string, precipitation float64) (db.UpdateResult, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE readings SET precipitation = $1 WHERE id = $2`, precipitation, lowerID(id))
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update precipitation: %w", err)
	}
	n := tag.RowsAffected()
	return db.UpdateResult{Matched: n, Modified: n}, nil
}
