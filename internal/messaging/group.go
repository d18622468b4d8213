package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Runnable is a component with a start/stop lifecycle.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

type statsReporter interface {
	Topic() string
	Stats() Stats
}

// ConsumerGroup runs consumers that share one subscriber and owns that subscriber's lifetime.
type ConsumerGroup struct {
	subscriber message.Subscriber
	members    []Runnable
	running    []Runnable
	logger     *zap.Logger
}

func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{subscriber: subscriber, logger: logger}
}

// Subscriber returns the subscriber members are expected to read from.
func (g *ConsumerGroup) Subscriber() message.Subscriber {
	return g.subscriber
}

func (g *ConsumerGroup) Add(members ...Runnable) {
	g.members = append(g.members, members...)
}

// Start starts members in order. On failure the ones already running are stopped
// and the error names the member that failed.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for idx, member := range g.members {
		if err := member.Start(ctx); err != nil {
			rollback := g.stopRunning()
			if rollback != nil {
				g.logger.Warn("rollback after failed start", zap.Error(rollback))
			}

			return fmt.Errorf("start %s: %w", describe(idx, member), err)
		}

		g.running = append(g.running, member)
	}

	g.logger.Info("consumer group running", zap.Int("consumers", len(g.running)))

	return nil
}

// Shutdown stops running members in reverse start order, reports their counters,
// then closes the subscriber. Every error is returned joined.
func (g *ConsumerGroup) Shutdown() error {
	for _, member := range g.running {
		if reporter, ok := member.(statsReporter); ok {
			stats := reporter.Stats()
			g.logger.Info("consumer totals",
				zap.String("topic", reporter.Topic()),
				zap.Uint64("acked", stats.Acked),
				zap.Uint64("dropped", stats.Dropped),
				zap.Uint64("redeliver", stats.Redeliver),
			)
		}
	}

	stopErr := g.stopRunning()
	closeErr := g.subscriber.Close()

	if closeErr != nil {
		closeErr = fmt.Errorf("close subscriber: %w", closeErr)
	}

	return errors.Join(stopErr, closeErr)
}

func (g *ConsumerGroup) stopRunning() error {
	var errs []error

	for _, member := range slices.Backward(g.running) {
		if err := member.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}

	g.running = nil

	return errors.Join(errs...)
}

func describe(idx int, member Runnable) string {
	if reporter, ok := member.(statsReporter); ok {
		return "consumer for " + reporter.Topic()
	}

	return fmt.Sprintf("member %d", idx)
}
