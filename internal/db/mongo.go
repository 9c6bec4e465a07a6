package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Collection names shared by every store backend.
const (
	UsersCollection    = "users"
	ReadingsCollection = "readings"
)

// NewMongoDatabase creates the process-wide MongoDB client and returns a
// handle to the named database. The client connects lazily; the start hook
// pings the primary so a bad URL fails the application start.
func NewMongoDatabase(lc fx.Lifecycle, logger *zap.Logger, url, database, appName string) (*mongo.Database, error) {
	logger.Info("initializing mongodb client", zap.String("database", database))

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(url).SetAppName(appName))
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create mongodb client: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("attempting to connect to mongodb...")
			if err := client.Ping(ctx, readpref.Primary()); err != nil {
				logger.Error("mongodb ping failed", zap.Error(err), zap.String("url", redactURL(url)))
				return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach mongodb. Please check: 1) MongoDB is running, 2) MONGODB_URL is correct, 3) Network/firewall allows connection. Error: %w", err)
			}
			logger.Info("mongodb connection established successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := client.Disconnect(ctx); err != nil {
				logger.Error("failed to disconnect mongodb client", zap.Error(err))
				return err
			}
			logger.Info("mongodb connection closed")
			return nil
		},
	})

	return client.Database(database), nil
}
