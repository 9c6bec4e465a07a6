package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/logging"
	"go.uber.org/zap"
)

// IngestMessage is a batch of sensor readings delivered over RabbitMQ.
// DeviceName, when set, fills readings that omit their own.
type IngestMessage struct {
	RequestID  string       `json:"request_id"`
	DeviceName string       `json:"deviceName"`
	Readings   []db.Reading `json:"readings"`
}

// IngestService stores sensor batches received from the ingest queue
type IngestService struct {
	readings *ReadingService
	logger   *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(readings *ReadingService, logger *zap.Logger) *IngestService {
	return &IngestService{
		readings: readings,
		logger:   logger,
	}
}

// ProcessMessage stores one ingest message. Any error sends the message to
// the dead letter queue.
func (s *IngestService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing message",
		zap.String("device_name", msg.DeviceName),
		zap.Int("readings_count", len(msg.Readings)),
	)

	deviceName := strings.TrimSpace(msg.DeviceName)
	for i := range msg.Readings {
		msg.Readings[i].ID = ""
		if strings.TrimSpace(msg.Readings[i].DeviceName) == "" {
			msg.Readings[i].DeviceName = deviceName
		}
	}

	created, err := s.readings.CreateMany(ctx, msg.Readings)
	if err != nil {
		reqLogger.Error("failed to store readings", zap.Error(err))
		return fmt.Errorf("failed to store readings: %w", err)
	}

	reqLogger.Info("message processed successfully",
		zap.Int("readings_count", len(created)),
	)
	return nil
}
