package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/repository"
	"go.uber.org/zap"
)

// UserInput is an operator-supplied user record. Nil timestamps and an empty
// password mean "keep the stored value" on update.
type UserInput struct {
	ID                string
	FirstName         string
	LastName          string
	Email             string
	Password          string
	Role              db.Role
	CreatedDate       *time.Time
	LastLoggedIn      *time.Time
	AuthenticationKey *string
}

// UserService implements user administration
type UserService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	now    func() time.Time
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository, hasher PasswordHasher, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		now:    time.Now,
		logger: logger,
	}
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// List returns every user
func (s *UserService) List(ctx context.Context) ([]db.User, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Get returns one user by id
func (s *UserService) Get(ctx context.Context, id string) (*db.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// GetByAuthenticationKey returns the user holding key
func (s *UserService) GetByAuthenticationKey(ctx context.Context, key string) (*db.User, error) {
	user, err := s.users.GetByAuthenticationKey(ctx, key)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// normalizeEmail is the stored and looked-up form of an email address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) newUser(in UserInput) (*db.User, error) {
	if in.Role == db.RoleUnknown {
		return nil, fmt.Errorf("%w: role is required", ErrValidation)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	hash, err := hashUnlessHashed(s.hasher, in.Password)
	if err != nil {
		return nil, err
	}
	return &db.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         in.Role,
		CreatedDate:  s.now().UTC(),
	}, nil
}

// ensureEmailFree fails with ErrEmailInUse when email belongs to a user
// other than ownerID; an empty ownerID matches nobody
func (s *UserService) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil && (ownerID == "" || existing.ID != ownerID) {
		return ErrEmailInUse
	}
	return nil
}

// Create adds a user under a store-assigned id
func (s *UserService) Create(ctx context.Context, in UserInput) (*db.User, error) {
	if err := s.ensureEmailFree(ctx, in.Email, ""); err != nil {
		return nil, err
	}
	user, err := s.newUser(in)
	if err != nil {
		return nil, err
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// CreateWithID adds a user under the given id. A taken id is rejected by the store.
func (s *UserService) CreateWithID(ctx context.Context, id string, in UserInput) (*db.User, error) {
	if err := s.ensureEmailFree(ctx, in.Email, ""); err != nil {
		return nil, err
	}
	user, err := s.newUser(in)
	if err != nil {
		return nil, err
	}
	created, err := s.users.CreateWithID(ctx, id, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user with id: %w", err)
	}
	return created, nil
}

// CreateMany adds users; any email already taken, or repeated in the
// batch, rejects the whole batch
func (s *UserService) CreateMany(ctx context.Context, inputs []UserInput) ([]db.User, error) {
	seen := make(map[string]struct{}, len(inputs))
	users := make([]db.User, 0, len(inputs))
	for _, in := range inputs {
		email := normalizeEmail(in.Email)
		if _, dup := seen[email]; dup {
			return nil, ErrEmailInUse
		}
		seen[email] = struct{}{}

		if err := s.ensureEmailFree(ctx, in.Email, ""); err != nil {
			return nil, err
		}
		user, err := s.newUser(in)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	created, err := s.users.CreateMany(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	return created, nil
}

// merge applies in over the stored record
func (s *UserService) merge(existing *db.User, in UserInput) (*db.User, error) {
	if in.Role == db.RoleUnknown {
		return nil, fmt.Errorf("%w: role is required", ErrValidation)
	}

	merged := *existing
	merged.FirstName = in.FirstName
	merged.LastName = in.LastName
	merged.Email = strings.TrimSpace(in.Email)
	merged.Role = in.Role
	merged.AuthenticationKey = in.AuthenticationKey
	if in.CreatedDate != nil {
		merged.CreatedDate = in.CreatedDate.UTC()
	}
	if in.LastLoggedIn != nil {
		t := in.LastLoggedIn.UTC()
		merged.LastLoggedIn = &t
	}
	if in.Password != "" {
		hash, err := hashUnlessHashed(s.hasher, in.Password)
		if err != nil {
			return nil, err
		}
		merged.PasswordHash = hash
	}
	return &merged, nil
}

// Update replaces a user, keeping stored timestamps and password hash the
// input leaves out. Moving to an email held by another user is ErrEmailInUse.
func (s *UserService) Update(ctx context.Context, in UserInput) (*db.User, error) {
	existing, err := s.users.GetByID(ctx, in.ID)
	if err != nil {
		return nil, notFound(err)
	}

	merged, err := s.merge(existing, in)
	if err != nil {
		return nil, err
	}
	if merged.Email != existing.Email {
		if err := s.ensureEmailFree(ctx, merged.Email, existing.ID); err != nil {
			return nil, err
		}
	}

	res, err := s.users.Update(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if res.Matched == 0 {
		return nil, ErrNotFound
	}
	return merged, nil
}

// UpdateMany replaces each user that exists; unknown ids are skipped and
// only reflected in the counts. Zero modified is ErrNotFound. An email held
// by another user, or claimed twice in the batch, rejects the whole batch.
func (s *UserService) UpdateMany(ctx context.Context, inputs []UserInput) (db.UpdateResult, error) {
	owners := make(map[string]string, len(inputs))
	users := make([]db.User, 0, len(inputs))
	for _, in := range inputs {
		existing, err := s.users.GetByID(ctx, in.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.logger.Debug("skipping unknown user in bulk update", zap.String("user_id", in.ID))
				continue
			}
			return db.UpdateResult{}, fmt.Errorf("failed to load user: %w", err)
		}
		merged, err := s.merge(existing, in)
		if err != nil {
			return db.UpdateResult{}, err
		}
		if owner, ok := owners[merged.Email]; ok && owner != merged.ID {
			return db.UpdateResult{}, ErrEmailInUse
		}
		owners[merged.Email] = merged.ID
		if merged.Email != existing.Email {
			if err := s.ensureEmailFree(ctx, merged.Email, existing.ID); err != nil {
				return db.UpdateResult{}, err
			}
		}
		users = append(users, *merged)
	}

	if len(users) == 0 {
		return db.UpdateResult{}, ErrNotFound
	}

	res, err := s.users.UpdateMany(ctx, users)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update users: %w", err)
	}
	if res.Failed > 0 {
		s.logger.Warn("bulk user update partially failed",
			zap.Int64("failed", res.Failed),
			zap.Int64("modified", res.Modified))
	}
	if res.Modified == 0 {
		return res, ErrNotFound
	}
	return res, nil
}

// UpdateRolesByCreatedDateRange sets role on users created inside [start, end]
func (s *UserService) UpdateRolesByCreatedDateRange(ctx context.Context, start, end time.Time, role db.Role) (db.UpdateResult, error) {
	res, err := s.users.UpdateRolesByCreatedDateRange(ctx, start, end, role)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update user roles: %w", err)
	}
	if res.Matched == 0 {
		return res, ErrNotFound
	}
	return res, nil
}

// Delete removes one user
func (s *UserService) Delete(ctx context.Context, id string) error {
	n, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every listed user that exists and returns the count
func (s *UserService) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	n, err := s.users.DeleteManyByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// DeleteByLastLoggedInDateRange removes users of role last seen inside [start, end]
func (s *UserService) DeleteByLastLoggedInDateRange(ctx context.Context, start, end time.Time, role db.Role) (int64, error) {
	n, err := s.users.DeleteManyByLastLoggedInDateRange(ctx, start, end, role)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}
