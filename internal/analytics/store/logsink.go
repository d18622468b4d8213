package store

import (
	"context"

	"github.com/serroba/linktrail/internal/analytics"
	"go.uber.org/zap"
)

// LogSink is an analytics.Sink that writes consumed events to the log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) LinkCreated(_ context.Context, event *analytics.LinkCreatedEvent) error {
	fields := []zap.Field{
		zap.String("linkId", event.LinkID),
		zap.String("ownerId", event.OwnerID),
		zap.String("code", event.Code),
		zap.String("destination", event.Destination),
		zap.Time("createdAt", event.CreatedAt),
	}

	if event.ExpiresAt != nil {
		fields = append(fields, zap.Time("expiresAt", *event.ExpiresAt))
	}

	s.logger.Info("link created", fields...)

	return nil
}

func (s *LogSink) VisitRecorded(_ context.Context, event *analytics.VisitRecordedEvent) error {
	s.logger.Info("visit recorded",
		zap.String("visitId", event.VisitID),
		zap.String("code", event.Code),
		zap.String("device", event.Device),
		zap.String("ip", event.IPAddress),
		zap.Time("visitedAt", event.VisitedAt),
	)

	return nil
}

var _ analytics.Sink = (*LogSink)(nil)
