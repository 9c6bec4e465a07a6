package db

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewPool opens the PostgreSQL pool behind the postgres stores. The pool
// is tagged with applicationName so sessions show up in pg_stat_activity.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[STORE] invalid DATABASE_URL: %w", err)
	}
	if applicationName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("[STORE] failed to create postgres pool: %w", err)
	}

	target := redactURL(databaseURL)
	logger.Info("postgres pool created",
		zap.String("url", target),
		zap.Int32("max_conns", poolCfg.MaxConns))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				logger.Error("postgres ping failed", zap.Error(err), zap.String("url", target))
				return fmt.Errorf("[STORE] cannot reach postgres at %s: %w", target, err)
			}
			logger.Info("postgres store ready")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("postgres pool closed")
			return nil
		},
	})

	return pool, nil
}

// redactURL hides the password of a connection URL for logging
func redactURL(raw string) string {
	if raw == "" {
		return "<empty>"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
