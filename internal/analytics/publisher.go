package analytics

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/linktrail/internal/messaging"
	"github.com/serroba/linktrail/internal/shortener"
	"go.uber.org/zap"
)

// DefaultVisitBuffer is how many visit events may wait for the broker before
// new ones are dropped.
const DefaultVisitBuffer = 1024

type queuedVisit struct {
	ctx   context.Context
	event *VisitRecordedEvent
}

// Publisher emits analytics events. Publishing is best effort: the request
// that triggered an event never fails because of it.
//
// Visit events come from the redirect path and are handed to a background
// worker through a bounded queue, so a slow broker never holds a redirect.
// When the queue is full the event is dropped and logged.
type Publisher struct {
	linkCreated   messaging.Publish[LinkCreatedEvent]
	visitRecorded messaging.Publish[VisitRecordedEvent]
	logger        *zap.Logger

	mu     sync.RWMutex
	closed bool
	visits chan queuedVisit
	wg     sync.WaitGroup
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithVisitBuffer sets the capacity of the visit queue.
func WithVisitBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.visits = make(chan queuedVisit, size)
		}
	}
}

// NewPublisher creates typed publish functions for both analytics topics and
// starts the visit worker. Call Shutdown to flush queued visits.
func NewPublisher(publisher message.Publisher, logger *zap.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		linkCreated:   messaging.NewPublishFunc[LinkCreatedEvent](publisher, TopicLinkCreated),
		visitRecorded: messaging.NewPublishFunc[VisitRecordedEvent](publisher, TopicVisitRecorded),
		logger:        logger,
		visits:        make(chan queuedVisit, DefaultVisitBuffer),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.wg.Go(p.drainVisits)

	return p
}

func (p *Publisher) LinkCreated(ctx context.Context, link *shortener.Link) {
	if err := p.linkCreated(ctx, NewLinkCreatedEvent(link)); err != nil {
		p.logger.Warn("failed to publish link created event",
			zap.String("code", string(link.Code)),
			zap.Error(err),
		)
	}
}

// VisitRecorded queues the event and returns without waiting for the broker.
func (p *Publisher) VisitRecorded(ctx context.Context, link *shortener.Link, visit *shortener.Visit) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("dropped visit recorded event after shutdown", zap.String("code", string(link.Code)))

		return
	}

	select {
	case p.visits <- queuedVisit{ctx: context.WithoutCancel(ctx), event: NewVisitRecordedEvent(link, visit)}:
	default:
		p.logger.Warn("dropped visit recorded event, queue full",
			zap.String("code", string(link.Code)),
			zap.Int("capacity", cap(p.visits)),
		)
	}
}

func (p *Publisher) drainVisits() {
	for queued := range p.visits {
		if err := p.visitRecorded(queued.ctx, queued.event); err != nil {
			p.logger.Warn("failed to publish visit recorded event",
				zap.String("code", queued.event.Code),
				zap.Error(err),
			)
		}
	}
}

// Shutdown stops accepting visits and waits until the queued ones are published.
func (p *Publisher) Shutdown() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.visits)
	}
	p.mu.Unlock()

	p.wg.Wait()

	return nil
}
