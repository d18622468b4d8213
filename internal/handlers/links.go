package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/shortener"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 256

// LinkRegistry manages owned links.
type LinkRegistry interface {
	Create(ctx context.Context, params shortener.CreateParams) (*shortener.Link, error)
	FindOwned(ctx context.Context, id, ownerID string) (*shortener.Link, error)
	Update(ctx context.Context, id, ownerID string, params shortener.UpdateParams) (*shortener.Link, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// ActivityReader answers owner-scoped analytics queries.
type ActivityReader interface {
	ListForOwner(ctx context.Context, ownerID string) (*analytics.Activity, error)
	StatsFor(ctx context.Context, linkID, ownerID string) (*analytics.LinkStats, error)
}

// LinkHandler serves the authenticated link management API.
type LinkHandler struct {
	registry  LinkRegistry
	activity  ActivityReader
	publisher EventPublisher
	baseURL   string
	logger    *zap.Logger
}

// NewLinkHandler creates a link handler.
func NewLinkHandler(
	registry LinkRegistry,
	activity ActivityReader,
	publisher EventPublisher,
	baseURL string,
	logger *zap.Logger,
) *LinkHandler {
	return &LinkHandler{
		registry:  registry,
		activity:  activity,
		publisher: publisher,
		baseURL:   baseURL,
		logger:    logger,
	}
}

func (h *LinkHandler) shortURL(code shortener.Code) string {
	return fmt.Sprintf("%s/%s", h.baseURL, code)
}

func (h *LinkHandler) Create(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.registry.Create(ctx, shortener.CreateParams{
		OwnerID:     owner,
		Destination: req.Body.URL,
		Code:        shortener.Code(req.Body.Code),
		ExpiresAt:   req.Body.ExpiresAt,
		Remarks:     req.Body.Remarks,
	})
	if err != nil {
		return nil, toHTTPError(err, h.logger, "failed to create link")
	}

	h.publisher.LinkCreated(ctx, link)

	resp := &CreateLinkResponse{Body: h.linkBody(link)}
	resp.Location = resp.Body.ShortURL

	return resp, nil
}

func (h *LinkHandler) List(ctx context.Context, _ *struct{}) (*ListLinksResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	activity, err := h.activity.ListForOwner(ctx, owner)
	if err != nil {
		return nil, toHTTPError(err, h.logger, "failed to list links")
	}

	resp := &ListLinksResponse{}
	resp.Body.Links = make([]LinkBody, 0, len(activity.Links))
	resp.Body.Visits = make([]VisitBody, 0, len(activity.Visits))

	for _, link := range activity.Links {
		resp.Body.Links = append(resp.Body.Links, h.linkBody(link))
	}

	for _, visit := range activity.Visits {
		resp.Body.Visits = append(resp.Body.Visits, ownerVisitBody(visit))
	}

	return resp, nil
}

func (h *LinkHandler) Get(ctx context.Context, req *LinkIDRequest) (*LinkResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.registry.FindOwned(ctx, req.ID, owner)
	if err != nil {
		return nil, toHTTPError(err, h.logger, "failed to get link")
	}

	return &LinkResponse{Body: h.linkBody(link)}, nil
}

func (h *LinkHandler) Update(ctx context.Context, req *UpdateLinkRequest) (*LinkResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.registry.Update(ctx, req.ID, owner, shortener.UpdateParams{
		Destination: req.Body.URL,
		Remarks:     req.Body.Remarks,
		ExpiresAt:   req.Body.ExpiresAt,
	})
	if err != nil {
		return nil, toHTTPError(err, h.logger, "failed to update link")
	}

	return &LinkResponse{Body: h.linkBody(link)}, nil
}

func (h *LinkHandler) Delete(ctx context.Context, req *LinkIDRequest) (*struct{}, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	if err = h.registry.Delete(ctx, req.ID, owner); err != nil {
		return nil, toHTTPError(err, h.logger, "failed to delete link")
	}

	return &struct{}{}, nil
}

func (h *LinkHandler) Stats(ctx context.Context, req *LinkIDRequest) (*StatsResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := h.activity.StatsFor(ctx, req.ID, owner)
	if err != nil {
		return nil, toHTTPError(err, h.logger, "failed to load stats")
	}

	resp := &StatsResponse{}
	resp.Body.Link = h.linkBody(stats.Link)
	resp.Body.TotalVisits = stats.TotalVisits
	resp.Body.Devices = make([]DeviceCountBody, 0, len(stats.Devices))
	resp.Body.Daily = make([]DayCountBody, 0, len(stats.Daily))
	resp.Body.Visits = make([]VisitBody, 0, len(stats.Visits))

	for _, d := range stats.Devices {
		resp.Body.Devices = append(resp.Body.Devices, DeviceCountBody{Device: d.Device, Count: d.Count})
	}

	for _, d := range stats.Daily {
		resp.Body.Daily = append(resp.Body.Daily, DayCountBody{Day: d.Day, Count: d.Count})
	}

	for _, v := range stats.Visits {
		resp.Body.Visits = append(resp.Body.Visits, visitBody(v))
	}

	return resp, nil
}

// QRCode renders the short URL of an owned link as a PNG.
func (h *LinkHandler) QRCode(ctx context.Context, req *LinkIDRequest) (*QRResponse, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	link, err := h.registry.FindOwned(ctx, req.ID, owner)
	if err != nil {
		return nil, toHTTPError(err, h.logger, "failed to get link")
	}

	png, err := qrcode.Encode(h.shortURL(link.Code), qrcode.Medium, qrSize)
	if err != nil {
		return nil, toHTTPError(err, h.logger, "failed to render qr code")
	}

	return &QRResponse{ContentType: "image/png", Body: png}, nil
}

func requireOwner(ctx context.Context) (string, error) {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return "", huma.Error401Unauthorized("missing owner identity")
	}

	return owner, nil
}
