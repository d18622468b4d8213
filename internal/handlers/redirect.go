package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linktrail/internal/accounting"
	"github.com/serroba/linktrail/internal/shortener"
	"go.uber.org/zap"
)

// RedirectEngine resolves codes and accounts visits.
type RedirectEngine interface {
	HandleRedirect(ctx context.Context, req accounting.RedirectRequest) (accounting.Outcome, error)
}

// RedirectObserver records redirect outcomes, typically as metrics.
type RedirectObserver interface {
	ObserveRedirect(outcome accounting.Outcome)
	ObserveUnavailable()
}

// EventPublisher announces link lifecycle and visit events.
type EventPublisher interface {
	LinkCreated(ctx context.Context, link *shortener.Link)
	VisitRecorded(ctx context.Context, link *shortener.Link, visit *shortener.Visit)
}

// RedirectHandler serves the public short code endpoint.
type RedirectHandler struct {
	engine    RedirectEngine
	observer  RedirectObserver
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewRedirectHandler creates a redirect handler.
func NewRedirectHandler(
	engine RedirectEngine,
	observer RedirectObserver,
	publisher EventPublisher,
	logger *zap.Logger,
) *RedirectHandler {
	return &RedirectHandler{
		engine:    engine,
		observer:  observer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Redirect resolves the code, accounts the visit and sends the client on.
func (h *RedirectHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	meta := RequestMetaFromContext(ctx)

	outcome, err := h.engine.HandleRedirect(ctx, accounting.RedirectRequest{
		Code:         shortener.Code(req.Code),
		UserAgent:    meta.UserAgent,
		IPCandidates: meta.IPCandidates,
		SocketAddr:   meta.SocketAddr,
		Now:          h.now(),
	})
	if err != nil {
		h.observer.ObserveUnavailable()
		h.logger.Error("failed to resolve short code", zap.String("code", req.Code), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to resolve link")
	}

	h.observer.ObserveRedirect(outcome)

	switch outcome.Kind {
	case accounting.KindNotFound:
		return nil, huma.Error404NotFound("short url not found")
	case accounting.KindGone:
		return nil, huma.Error410Gone("short url is no longer active")
	case accounting.KindRedirect:
	}

	if outcome.Visit != nil {
		h.publisher.VisitRecorded(ctx, outcome.Link, outcome.Visit)
	}

	resp := &RedirectResponse{Status: http.StatusFound}
	resp.CacheControl = "no-store, no-cache, must-revalidate"
	resp.Pragma = "no-cache"
	resp.Expires = "0"

	if wantsJSON(meta.Accept) {
		body, err := json.Marshal(RedirectPreview{RedirectURL: outcome.Destination})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to encode preview")
		}

		resp.Status = http.StatusOK
		resp.ContentType = "application/json"
		resp.Body = body

		return resp, nil
	}

	resp.Location = outcome.Destination

	return resp, nil
}

// Reserved answers well-known browser and crawler paths without touching the store.
func (h *RedirectHandler) Reserved(_ context.Context, _ *struct{}) (*ReservedResponse, error) {
	return &ReservedResponse{}, nil
}

func wantsJSON(accept string) bool {
	return strings.Contains(strings.ToLower(accept), "application/json")
}
