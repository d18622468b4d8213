package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

// Outcome is what happened to one delivered message.
type Outcome int

const (
	// Acked means the handler accepted the event.
	Acked Outcome = iota
	// Dropped means the payload could not be decoded; it is acked so it is never redelivered.
	Dropped
	// Redeliver means the handler failed and the message was nacked.
	Redeliver
)

func (o Outcome) String() string {
	switch o {
	case Acked:
		return "acked"
	case Dropped:
		return "dropped"
	case Redeliver:
		return "redeliver"
	default:
		return "unknown"
	}
}

// Stats counts message outcomes for one consumer.
type Stats struct {
	Acked     uint64
	Dropped   uint64
	Redeliver uint64
}

// Consumer reads one topic and feeds decoded events to a typed handler.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger

	acked, dropped, redeliver atomic.Uint64

	stop     context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer binds handler to topic on subscriber.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger.With(zap.String("topic", topic)),
	}
}

// Topic returns the topic this consumer reads.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Stats returns a snapshot of the outcome counters.
func (c *Consumer[T]) Stats() Stats {
	return Stats{
		Acked:     c.acked.Load(),
		Dropped:   c.dropped.Load(),
		Redeliver: c.redeliver.Load(),
	}
}

// Start subscribes and processes messages on a background goroutine.
func (c *Consumer[T]) Start(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)

	deliveries, err := c.subscriber.Subscribe(runCtx, c.topic)
	if err != nil {
		stop()

		return err
	}

	c.stop = stop
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		c.run(runCtx, deliveries)
	}()

	return nil
}

func (c *Consumer[T]) run(ctx context.Context, deliveries <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-deliveries:
			if !open {
				return
			}

			c.record(msg, c.process(ctx, msg))
		}
	}
}

func (c *Consumer[T]) process(ctx context.Context, msg *message.Message) Outcome {
	var event T

	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("undecodable event", zap.String("messageId", msg.UUID), zap.Error(err))
		msg.Ack()

		return Dropped
	}

	if err := c.handler(ctx, &event); err != nil {
		c.logger.Warn("handler failed", zap.String("messageId", msg.UUID), zap.Error(err))
		msg.Nack()

		return Redeliver
	}

	msg.Ack()

	return Acked
}

func (c *Consumer[T]) record(msg *message.Message, outcome Outcome) {
	switch outcome {
	case Acked:
		c.acked.Add(1)
	case Dropped:
		c.dropped.Add(1)
	case Redeliver:
		c.redeliver.Add(1)
	}

	c.logger.Debug("event handled",
		zap.String("messageId", msg.UUID),
		zap.Stringer("outcome", outcome),
	)
}

// Shutdown cancels the subscription and blocks until the message in flight is settled.
// Calling it before Start or more than once is safe.
func (c *Consumer[T]) Shutdown() error {
	c.stopOnce.Do(func() {
		if c.stop != nil {
			c.stop()
		}
	})

	c.wg.Wait()

	return nil
}
