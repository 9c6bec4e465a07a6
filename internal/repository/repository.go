// Package repository holds the identity and reading stores. Each store has a
// MongoDB implementation (the default document backend) and a PostgreSQL
// implementation selected with STORE_DRIVER=postgres.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/septivank/weather-readings-api/internal/db"
)

// ErrNotFound is returned by single-record lookups when nothing matches.
var ErrNotFound = errors.New("not found")

// UserRepository is the identity store.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*db.User, error)
	// GetByEmail returns nil, nil when no user has the email.
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByAuthenticationKey(ctx context.Context, key string) (*db.User, error)
	GetAll(ctx context.Context) ([]db.User, error)
	Create(ctx context.Context, user *db.User) (*db.User, error)
	// CreateWithID inserts with an explicit id. Behavior on a duplicate id is
	// store-defined; both backends reject it with a duplicate key error.
	CreateWithID(ctx context.Context, id string, user *db.User) (*db.User, error)
	CreateMany(ctx context.Context, users []db.User) ([]db.User, error)
	Update(ctx context.Context, user *db.User) (db.UpdateResult, error)
	UpdateMany(ctx context.Context, users []db.User) (db.UpdateResult, error)
	UpdateRolesByCreatedDateRange(ctx context.Context, start, end time.Time, role db.Role) (db.UpdateResult, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	DeleteManyByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteManyByLastLoggedInDateRange(ctx context.Context, start, end time.Time, role db.Role) (int64, error)
}

// ReadingRepository is the reading store.
type ReadingRepository interface {
	GetByID(ctx context.Context, id string) (*db.Reading, error)
	GetByPage(ctx context.Context, page, size int) ([]db.Reading, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]db.Reading, error)
	Create(ctx context.Context, reading *db.Reading) (*db.Reading, error)
	CreateMany(ctx context.Context, readings []db.Reading) ([]db.Reading, error)
	Update(ctx context.Context, reading *db.Reading) (db.UpdateResult, error)
	UpdateMany(ctx context.Context, readings []db.Reading) (db.UpdateResult, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	DeleteManyByIDs(ctx context.Context, ids []string) (int64, error)
	GetMaxPrecipSince(ctx context.Context, deviceName string, since time.Time) (*db.PrecipitationPeak, error)
	GetDeviceByDate(ctx context.Context, deviceName string, at time.Time) (*db.DeviceConditions, error)
	GetMaxTempByDateRange(ctx context.Context, start, end time.Time) ([]db.DeviceMaxTemperature, error)
	UpdatePrecipByID(ctx context.Context, id string, precipitation float64) (db.UpdateResult, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DBTX is the subset of *pgxpool.Pool used by the postgres stores.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}
