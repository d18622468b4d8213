// Package accounting implements the redirect path: resolve a code, decide
// whether the hit is a trackable visit and record it atomically.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/serroba/linktrail/internal/classifier"
	"github.com/serroba/linktrail/internal/shortener"
	"go.uber.org/zap"
)

// ErrStoreUnavailable is returned when the link itself cannot be resolved.
var ErrStoreUnavailable = errors.New("link store unavailable")

const maxUserAgentBytes = 512

// Resolver looks links up by code, with status derived at the given instant,
// and persists derived expiry.
type Resolver interface {
	ResolveAt(ctx context.Context, code shortener.Code, at time.Time) (*shortener.Link, error)
	Deactivate(ctx context.Context, link *shortener.Link) error
}

// Kind is the result class of a redirect request.
type Kind int

const (
	KindRedirect Kind = iota
	KindNotFound
	KindGone
)

// SkipReason explains why a redirect was not accounted.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipBot       SkipReason = "bot"
	SkipDuplicate SkipReason = "duplicate"
	SkipError     SkipReason = "error"
)

// RedirectRequest carries what the engine needs from an incoming hit.
type RedirectRequest struct {
	Code         shortener.Code
	UserAgent    string
	IPCandidates []string
	SocketAddr   string
	Now          time.Time
}

// Outcome is the result of HandleRedirect. Visit is set only when a new visit
// was recorded by this request.
type Outcome struct {
	Kind        Kind
	Destination string
	Link        *shortener.Link
	Visit       *shortener.Visit
	Skipped     SkipReason
}

// Engine runs click accounting for redirects.
type Engine struct {
	links  Resolver
	dedup  *Deduplicator
	store  Store
	logger *zap.Logger
}

// NewEngine wires the engine. A non-positive window disables deduplication.
func NewEngine(links Resolver, store Store, window time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		links:  links,
		dedup:  NewDeduplicator(store, window),
		store:  store,
		logger: logger,
	}
}

// HandleRedirect resolves the code and accounts the hit. Expiry, the
// fingerprint and the visit time are all judged at req.Now. The only error it
// returns wraps ErrStoreUnavailable; once the destination is known, accounting
// problems are logged and the outcome is still a redirect.
func (e *Engine) HandleRedirect(ctx context.Context, req RedirectRequest) (Outcome, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	link, err := e.links.ResolveAt(ctx, req.Code, now)
	if errors.Is(err, shortener.ErrNotFound) {
		return Outcome{Kind: KindNotFound}, nil
	}

	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if link.Status != shortener.StatusActive {
		e.persistExpiry(ctx, link, now)

		return Outcome{Kind: KindGone, Link: link}, nil
	}

	outcome := Outcome{Kind: KindRedirect, Destination: link.Destination, Link: link}

	if classifier.IsLikelyBot(req.UserAgent) {
		outcome.Skipped = SkipBot

		return outcome, nil
	}

	ip := classifier.NormalizeClientIP(req.IPCandidates, req.SocketAddr)
	fingerprint := e.dedup.Fingerprint(string(link.Code), ip, now)

	log := e.logger.With(
		zap.String("code", string(link.Code)),
		zap.String("fingerprint", fingerprint),
	)

	duplicate, err := e.dedup.IsDuplicate(ctx, link.ID, fingerprint)
	if err != nil {
		log.Warn("visit dedup lookup failed", zap.Error(err))

		outcome.Skipped = SkipError

		return outcome, nil
	}

	if duplicate {
		outcome.Skipped = SkipDuplicate

		return outcome, nil
	}

	visit := &shortener.Visit{
		ID:          uuid.NewString(),
		LinkID:      link.ID,
		Fingerprint: fingerprint,
		Device:      string(classifier.ClassifyDevice(req.UserAgent)),
		IPAddress:   ip,
		UserAgent:   truncateUTF8(req.UserAgent, maxUserAgentBytes),
		VisitedAt:   now.UTC(),
	}

	recorded, err := e.store.RecordVisitIfNew(ctx, visit)
	if err != nil {
		log.Error("failed to record visit", zap.Error(err))

		outcome.Skipped = SkipError

		return outcome, nil
	}

	if !recorded {
		outcome.Skipped = SkipDuplicate

		return outcome, nil
	}

	outcome.Visit = visit

	return outcome, nil
}

// persistExpiry stores the inactive status of a link that expired since it
// was last written. Failures only delay the stored status.
func (e *Engine) persistExpiry(ctx context.Context, link *shortener.Link, now time.Time) {
	if !link.Expired(now) {
		return
	}

	if err := e.links.Deactivate(ctx, link); err != nil {
		e.logger.Warn("failed to persist link expiry",
			zap.String("code", string(link.Code)),
			zap.Error(err),
		)
	}
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
