package analytics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/linktrail/internal/messaging"
	"go.uber.org/zap"
)

// Sink receives consumed analytics events.
type Sink interface {
	LinkCreated(ctx context.Context, event *LinkCreatedEvent) error
	VisitRecorded(ctx context.Context, event *VisitRecordedEvent) error
}

// NewConsumers builds one consumer per analytics topic, all feeding sink.
func NewConsumers(subscriber message.Subscriber, sink Sink, logger *zap.Logger) []messaging.Runnable {
	return []messaging.Runnable{
		messaging.NewConsumer(subscriber, TopicLinkCreated, sink.LinkCreated, logger),
		messaging.NewConsumer(subscriber, TopicVisitRecorded, sink.VisitRecorded, logger),
	}
}
