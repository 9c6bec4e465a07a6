package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers selectable with STORE_DRIVER
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Store       StoreConfig
	Auth        AuthConfig
	Readings    ReadingsConfig
	RabbitMQ    RabbitMQConfig
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	Address         string
	GinMode         string
	ShutdownTimeout time.Duration
}

// StoreConfig holds database connection settings
type StoreConfig struct {
	Driver        string
	MongoURL      string
	MongoDatabase string
	PostgresURL   string
}

// AuthConfig holds credential hashing settings
type AuthConfig struct {
	BcryptCost int
}

// ReadingsConfig holds reading query settings
type ReadingsConfig struct {
	PageSize     int
	MaxBatchSize int
}

// RabbitMQConfig holds RabbitMQ connection and queue settings. An empty URL
// disables sensor ingest and reading events.
type RabbitMQConfig struct {
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	EventsExchange   string
	EventsRoutingKey string
	DLQQueue         string
	PrefetchCount    int
}

// Enabled reports whether messaging is configured
func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "weather-readings-api"),
		HTTP: HTTPConfig{
			Address:         getEnv("HTTP_ADDRESS", ":8080"),
			GinMode:         getEnv("GIN_MODE", "release"),
			ShutdownTimeout: time.Duration(getEnvAsInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
			MongoURL:      getEnv("MONGODB_URL", ""),
			MongoDatabase: getEnv("MONGODB_DATABASE", "weather_data"),
			PostgresURL:   getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			BcryptCost: getEnvAsInt("BCRYPT_COST", 10),
		},
		Readings: ReadingsConfig{
			PageSize:     getEnvAsInt("READINGS_PAGE_SIZE", 5),
			MaxBatchSize: getEnvAsInt("MAX_BATCH_SIZE", 1000),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "weather.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "weather.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "sensor.reading.raw"),
			EventsExchange:   getEnv("RABBITMQ_EVENTS_EXCHANGE", "weather.events.exchange"),
			EventsRoutingKey: getEnv("RABBITMQ_EVENTS_ROUTING_KEY", "reading.created"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "weather.ingest.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
	}

	// Validate required fields
	switch cfg.Store.Driver {
	case DriverMongo:
		if cfg.Store.MongoURL == "" {
			return nil, fmt.Errorf("MONGODB_URL is required but not set in environment variables")
		}
	case DriverPostgres:
		if cfg.Store.PostgresURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
		}
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverPostgres, cfg.Store.Driver)
	}
	if cfg.Readings.PageSize < 1 {
		return nil, fmt.Errorf("READINGS_PAGE_SIZE must be positive, got %d", cfg.Readings.PageSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
