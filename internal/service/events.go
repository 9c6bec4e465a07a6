package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/septivank/weather-readings-api/internal/authz"
	"github.com/septivank/weather-readings-api/internal/db"
	"go.uber.org/zap"
)

// EventPublisher announces stored readings to downstream consumers
type EventPublisher interface {
	PublishReadingCreated(ctx context.Context, eventID string, reading db.Reading) error
}

// NopPublisher drops every event; used when messaging is disabled
type NopPublisher struct{}

// PublishReadingCreated does nothing
func (NopPublisher) PublishReadingCreated(context.Context, string, db.Reading) error {
	return nil
}

// publishCreated sends one event per reading. Failures are logged and never
// fail the write that produced the readings.
func publishCreated(ctx context.Context, events EventPublisher, logger *zap.Logger, readings []db.Reading) {
	if user, ok := authz.UserFromContext(ctx); ok {
		logger = logger.With(zap.String("user_id", user.ID))
	}
	for _, reading := range readings {
		if err := events.PublishReadingCreated(ctx, uuid.NewString(), reading); err != nil {
			logger.Error("failed to publish event",
				zap.Error(err),
				zap.String("reading_id", reading.ID),
				zap.String("device_name", reading.DeviceName),
			)
		}
	}
}
