package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/weather-readings-api/internal/api"
	"github.com/septivank/weather-readings-api/internal/authz"
	"github.com/septivank/weather-readings-api/internal/config"
	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/mq"
	"github.com/septivank/weather-readings-api/internal/repository"
	"github.com/septivank/weather-readings-api/internal/service"
	"github.com/septivank/weather-readings-api/internal/validator"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// healthGroup collects the api.HealthCheck of every dependency
const healthGroup = `group:"health"`

// storeModule provides the repositories of the configured driver
func storeModule(cfg *config.Config) fx.Option {
	if cfg.Store.Driver == config.DriverPostgres {
		return fx.Module("postgres",
			fx.Provide(
				ProvideDBPool,
				ProvidePostgresUserRepository,
				ProvidePostgresReadingRepository,
				fx.Annotate(ProvidePostgresHealthCheck, fx.ResultTags(healthGroup)),
			),
		)
	}
	return fx.Module("mongo",
		fx.Provide(
			ProvideMongoDatabase,
			ProvideMongoUserRepository,
			ProvideMongoReadingRepository,
			fx.Annotate(ProvideMongoHealthCheck, fx.ResultTags(healthGroup)),
		),
	)
}

// messagingModule wires RabbitMQ ingest and events, or a no-op publisher
// when RABBITMQ_URL is empty
func messagingModule(cfg *config.Config) fx.Option {
	if !cfg.RabbitMQ.Enabled() {
		return fx.Provide(func(logger *zap.Logger) service.EventPublisher {
			logger.Info("RABBITMQ_URL not set, sensor ingest and reading events are disabled")
			return service.NopPublisher{}
		})
	}
	return fx.Module("rabbitmq",
		fx.Provide(
			ProvideMQConnection,
			ProvidePublisher,
			ProvideIngestService,
			fx.Annotate(ProvideMQHealthCheck, fx.ResultTags(healthGroup)),
		),
		fx.Invoke(startIngestConsumer),
	)
}

// ProvideMongoDatabase creates the MongoDB database handle
func ProvideMongoDatabase(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mongo.Database, error) {
	return db.NewMongoDatabase(lc, logger, cfg.Store.MongoURL, cfg.Store.MongoDatabase, cfg.ServiceName)
}

// ProvideMongoUserRepository creates the MongoDB identity store
func ProvideMongoUserRepository(database *mongo.Database) repository.UserRepository {
	return repository.NewMongoUserRepository(database)
}

// ProvideMongoReadingRepository creates the MongoDB reading store
func ProvideMongoReadingRepository(database *mongo.Database) repository.ReadingRepository {
	return repository.NewMongoReadingRepository(database)
}

// ProvideMongoHealthCheck pings the MongoDB primary
func ProvideMongoHealthCheck(database *mongo.Database) api.HealthCheck {
	return api.HealthCheck{
		Name: "mongodb",
		Ping: func(ctx context.Context) error {
			return database.Client().Ping(ctx, readpref.Primary())
		},
	}
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Store.PostgresURL, cfg.ServiceName)
}

// ProvidePostgresUserRepository creates the PostgreSQL identity store
func ProvidePostgresUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepository(pool)
}

// ProvidePostgresReadingRepository creates the PostgreSQL reading store
func ProvidePostgresReadingRepository(pool *pgxpool.Pool) repository.ReadingRepository {
	return repository.NewPostgresReadingRepository(pool)
}

// ProvidePostgresHealthCheck pings the PostgreSQL pool
func ProvidePostgresHealthCheck(pool *pgxpool.Pool) api.HealthCheck {
	return api.HealthCheck{Name: "postgres", Ping: pool.Ping}
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvideMQHealthCheck reports a lost RabbitMQ connection
func ProvideMQHealthCheck(conn *mq.Connection) api.HealthCheck {
	return api.HealthCheck{Name: "rabbitmq", Ping: conn.Ping}
}

// ProvidePublisher creates the reading events publisher
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (service.EventPublisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.EventsRoutingKey, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideIngestService creates the sensor ingest service
func ProvideIngestService(readings *service.ReadingService, logger *zap.Logger) *service.IngestService {
	return service.NewIngestService(readings, logger)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Readings.MaxBatchSize)
}

// ProvidePasswordHasher creates the bcrypt hasher
func ProvidePasswordHasher(cfg *config.Config) service.PasswordHasher {
	return service.NewBcryptHasher(cfg.Auth.BcryptCost)
}

// ProvideAuthService creates a new authentication service
func ProvideAuthService(users repository.UserRepository, hasher service.PasswordHasher, logger *zap.Logger) *service.AuthService {
	return service.NewAuthService(users, hasher, logger)
}

// ProvideUserService creates a new user service
func ProvideUserService(users repository.UserRepository, hasher service.PasswordHasher, logger *zap.Logger) *service.UserService {
	return service.NewUserService(users, hasher, logger)
}

// ProvideReadingService creates a new reading service
func ProvideReadingService(
	readings repository.ReadingRepository,
	validator *validator.Validator,
	events service.EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *service.ReadingService {
	return service.NewReadingService(readings, validator, events, cfg.Readings.PageSize, logger)
}

// ProvideGate creates the authorization gate
func ProvideGate(users repository.UserRepository, logger *zap.Logger) *authz.Gate {
	return authz.NewGate(users, logger)
}

type handlerParams struct {
	fx.In

	Auth      *service.AuthService
	Users     *service.UserService
	Readings  *service.ReadingService
	Validator *validator.Validator
	Checks    []api.HealthCheck `group:"health"`
	Logger    *zap.Logger
}

// ProvideHandler creates the API handlers
func ProvideHandler(p handlerParams) *api.Handler {
	return api.NewHandler(p.Auth, p.Users, p.Readings, p.Validator, p.Checks, p.Logger)
}

// ProvideRouter creates the gin engine
func ProvideRouter(h *api.Handler, gate *authz.Gate, logger *zap.Logger) *gin.Engine {
	return api.NewRouter(h, gate, logger)
}

// startIngestConsumer consumes sensor batches for the lifetime of the app
func startIngestConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	ingest *service.IngestService,
) error {
	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.IngestQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.IngestExchange,
		RoutingKey:    cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       ingest.ProcessMessage,
	})
	if err != nil {
		cancel()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting ingest consumer",
				zap.String("queue", cfg.RabbitMQ.IngestQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("ingest consumer stopped gracefully")
			return nil
		},
	})

	return nil
}

// startServer forces construction of the HTTP server
func startServer(*http.Server) {}
