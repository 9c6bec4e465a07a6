package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/weather-readings-api/internal/db"
)

// lowerID is the stored form of an id. Ids are hex and compared as text,
// so an uppercase request id must be folded before it reaches SQL.
func lowerID(id string) string {
	return strings.ToLower(id)
}

func lowerIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = lowerID(id)
	}
	return out
}

const userColumns = `id, first_name, last_name, email, password_hash, role, created_date, last_logged_in, authentication_key`

// PostgresUserRepository stores users in the users table
type PostgresUserRepository struct {
	pool DBTX
}

// NewPostgresUserRepository creates a new PostgreSQL identity store
func NewPostgresUserRepository(pool DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*db.User, error) {
	var (
		user db.User
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedDate,
		&user.LastLoggedIn,
		&user.AuthenticationKey,
	)
	if err != nil {
		return nil, err
	}
	user.Role, _ = db.ParseRole(role)
	return &user, nil
}

func (r *PostgresUserRepository) queryOne(ctx context.Context, where string, arg any) (*db.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by id
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*db.User, error) {
	return r.queryOne(ctx, `id = $1`, lowerID(id))
}

// GetByEmail retrieves a user by email, nil when absent
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	user, err := r.queryOne(ctx, `email = $1 LIMIT 1`, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// GetByAuthenticationKey retrieves the user holding an active key
func (r *PostgresUserRepository) GetByAuthenticationKey(ctx context.Context, key string) (*db.User, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	return r.queryOne(ctx, `authentication_key = $1 LIMIT 1`, key)
}

// GetAll returns every user
func (r *PostgresUserRepository) GetAll(ctx context.Context) ([]db.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []db.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}

const insertUserQuery = `
	INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func insertUser(ctx context.Context, q execer, id string, user *db.User) error {
	_, err := q.Exec(ctx, insertUserQuery,
		id,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Role.String(),
		user.CreatedDate,
		user.LastLoggedIn,
		user.AuthenticationKey,
	)
	return err
}

// Create inserts a user under a new id
func (r *PostgresUserRepository) Create(ctx context.Context, user *db.User) (*db.User, error) {
	return r.CreateWithID(ctx, db.NewObjectID(), user)
}

// CreateWithID inserts a user under the caller's id; a taken id fails on the primary key
func (r *PostgresUserRepository) CreateWithID(ctx context.Context, id string, user *db.User) (*db.User, error) {
	id = lowerID(id)
	if err := insertUser(ctx, r.pool, id, user); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	created := *user
	created.ID = id
	return &created, nil
}

// CreateMany inserts users under new ids in one transaction
func (r *PostgresUserRepository) CreateMany(ctx context.Context, users []db.User) ([]db.User, error) {
	if len(users) == 0 {
		return []db.User{}, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created := make([]db.User, 0, len(users))
	for i := range users {
		id := db.NewObjectID()
		if err := insertUser(ctx, tx, id, &users[i]); err != nil {
			return nil, fmt.Errorf("failed to insert user: %w", err)
		}
		u := users[i]
		u.ID = id
		created = append(created, u)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

const replaceUserQuery = `
	UPDATE users
	SET first_name = $2, last_name = $3, email = $4, password_hash = $5, role = $6,
		created_date = $7, last_logged_in = $8, authentication_key = $9
	WHERE id = $1
`

// Update replaces the stored user with the same id
func (r *PostgresUserRepository) Update(ctx context.Context, user *db.User) (db.UpdateResult, error) {
	tag, err := r.pool.Exec(ctx, replaceUserQuery,
		lowerID(user.ID),
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Role.String(),
		user.CreatedDate,
		user.LastLoggedIn,
		user.AuthenticationKey,
	)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update user: %w", err)
	}
	n := tag.RowsAffected()
	return db.UpdateResult{Matched: n, Modified: n}, nil
}

// UpdateMany replaces each user by id; a failing record does not stop the others
func (r *PostgresUserRepository) UpdateMany(ctx context.Context, users []db.User) (db.UpdateResult, error) {
	var (
		total   db.UpdateResult
		lastErr error
	)
	for i := range users {
		res, err := r.Update(ctx, &users[i])
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

// UpdateRolesByCreatedDateRange sets role on every user created inside [start, end]
func (r *PostgresUserRepository) UpdateRolesByCreatedDateRange(ctx context.Context, start, end time.Time, role db.Role) (db.UpdateResult, error) {
	query := `UPDATE users SET role = $1 WHERE created_date >= $2 AND created_date <= $3`

	tag, err := r.pool.Exec(ctx, query, role.String(), start, end)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update user roles: %w", err)
	}
	n := tag.RowsAffected()
	return db.UpdateResult{Matched: n, Modified: n}, nil
}

// DeleteByID removes a user, returning the deleted count
func (r *PostgresUserRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, lowerID(id))
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteManyByIDs removes every listed user that exists
func (r *PostgresUserRepository) DeleteManyByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, lowerIDs(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteManyByLastLoggedInDateRange removes users of role whose last login is inside [start, end]
func (r *PostgresUserRepository) DeleteManyByLastLoggedInDateRange(ctx context.Context, start, end time.Time, role db.Role) (int64, error) {
	query := `DELETE FROM users WHERE role = $1 AND last_logged_in >= $2 AND last_logged_in <= $3`

	tag, err := r.pool.Exec(ctx, query, role.String(), start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	return tag.RowsAffected(), nil
}
