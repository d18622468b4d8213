// Package health reports the reachability of the service's backing stores.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/linktrail/internal/ratelimit"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	defaultTimeout = 2 * time.Second
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc lets a plain function serve as a Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Redis checks a go-redis client with PING.
func Redis(client *redis.Client) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// Postgres checks a pgx pool by acquiring a connection and pinging it.
func Postgres(pool *pgxpool.Pool) Checker {
	return CheckerFunc(pool.Ping)
}

// Component is a named dependency to check.
type Component struct {
	Name    string
	Checker Checker
}

// ComponentStatus is the result for one component.
type ComponentStatus struct {
	Healthy   bool   `json:"healthy"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type Response struct {
	Body struct {
		Status     string                     `example:"ok" json:"status"`
		Components map[string]ComponentStatus `json:"components"`
	}
}

type Handler struct {
	components []Component
	timeout    time.Duration
}

func NewHandler(components ...Component) *Handler {
	return &Handler{components: components, timeout: defaultTimeout}
}

// Check pings all components concurrently, each under its own timeout. A failure
// degrades the overall status; the endpoint itself always answers 200.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	results := make([]ComponentStatus, len(h.components))

	var wg sync.WaitGroup

	for idx, component := range h.components {
		wg.Go(func() {
			results[idx] = h.probe(ctx, component.Checker)
		})
	}

	wg.Wait()

	resp := &Response{}
	resp.Body.Status = StatusOK
	resp.Body.Components = make(map[string]ComponentStatus, len(h.components))

	for idx, component := range h.components {
		resp.Body.Components[component.Name] = results[idx]
		if !results[idx].Healthy {
			resp.Body.Status = StatusDegraded
		}
	}

	return resp, nil
}

func (h *Handler) probe(ctx context.Context, checker Checker) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	started := time.Now()
	err := checker.Ping(ctx)
	status := ComponentStatus{Healthy: err == nil, LatencyMs: time.Since(started).Milliseconds()}

	if err != nil {
		status.Error = err.Error()
	}

	return status
}

func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report dependency health",
		Tags:        []string{"Health"},
		Metadata:    ratelimit.EndpointConfig{Disabled: true}.Metadata(),
	}, h.Check)
}
