package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/repository"
	"go.uber.org/zap"
)

// RegisterInput is the self-service sign-up payload
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthService issues and revokes authentication keys
type AuthService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	newKey func() string
	now    func() time.Time
	logger *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(users repository.UserRepository, hasher PasswordHasher, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		newKey: uuid.NewString,
		now:    time.Now,
		logger: logger,
	}
}

// Login verifies credentials and stores a fresh key on the user, replacing
// any previous one. Unknown email and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !s.hasher.Verify(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	key := s.newKey()
	loggedIn := s.now().UTC()
	user.AuthenticationKey = &key
	user.LastLoggedIn = &loggedIn

	// key and login time go out in a single write
	res, err := s.users.Update(ctx, user)
	if err != nil {
		return "", fmt.Errorf("failed to store authentication key: %w", err)
	}
	if res.Matched == 0 {
		// deleted between lookup and update
		return "", ErrInvalidCredentials
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", user.Role.String()))
	return key, nil
}

// Logout clears the key of the user holding it
func (s *AuthService) Logout(ctx context.Context, key string) error {
	user, err := s.users.GetByAuthenticationKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	user.AuthenticationKey = nil
	res, err := s.users.Update(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to clear authentication key: %w", err)
	}
	if res.Matched == 0 {
		return ErrNotFound
	}

	s.logger.Info("user logged out", zap.String("user_id", user.ID))
	return nil
}

// Register creates a student account
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*db.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailInUse
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &db.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        email,
		PasswordHash: hash,
		Role:         db.RoleStudent,
		CreatedDate:  s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}
