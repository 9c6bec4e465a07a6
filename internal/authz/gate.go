package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/repository"
	"go.uber.org/zap"
)

// ErrForbidden is returned for a missing or unknown key and for a role
// outside the operation's allow-list. The two cases are not distinguished.
var ErrForbidden = errors.New("forbidden")

// KeyResolver finds the user holding an authentication key
type KeyResolver interface {
	GetByAuthenticationKey(ctx context.Context, key string) (*db.User, error)
}

// Gate authorizes requests by authentication key
type Gate struct {
	users  KeyResolver
	logger *zap.Logger
}

// NewGate creates a new gate
func NewGate(users KeyResolver, logger *zap.Logger) *Gate {
	return &Gate{
		users:  users,
		logger: logger,
	}
}

// Authorize resolves key and checks the user's role against op. Store
// failures are returned wrapped and are not ErrForbidden.
func (g *Gate) Authorize(ctx context.Context, key string, op Operation) (*db.User, error) {
	if key == "" {
		return nil, ErrForbidden
	}

	user, err := g.users.GetByAuthenticationKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to resolve authentication key: %w", err)
	}

	if !Allowed(user.Role, op) {
		g.logger.Info("operation denied",
			zap.String("user_id", user.ID),
			zap.String("role", user.Role.String()),
			zap.Stringer("operation", op),
		)
		return nil, ErrForbidden
	}
	return user, nil
}

type userKey struct{}

// WithUser stores the authorized user in ctx
func WithUser(ctx context.Context, user *db.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user stored by WithUser
func UserFromContext(ctx context.Context) (*db.User, bool) {
	user, ok := ctx.Value(userKey{}).(*db.User)
	return user, ok && user != nil
}
