package handlers_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
	"github.com/serroba/linktrail/internal/accounting"
	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/handlers"
	"github.com/serroba/linktrail/internal/middleware"
	"github.com/serroba/linktrail/internal/shortener"
	"github.com/serroba/linktrail/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBaseURL = "http://short.test"
	testSecret  = "handlers-secret"
	chromeUA    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu      sync.Mutex
	created []*shortener.Link
	visits  []*shortener.Visit
}

func (p *recordingPublisher) LinkCreated(_ context.Context, link *shortener.Link) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.created = append(p.created, link)
}

func (p *recordingPublisher) VisitRecorded(_ context.Context, _ *shortener.Link, visit *shortener.Visit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.visits = append(p.visits, visit)
}

// countingObserver counts redirect outcomes by kind.
type countingObserver struct {
	outcomes    []accounting.Outcome
	unavailable int
}

func (o *countingObserver) ObserveRedirect(outcome accounting.Outcome) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *countingObserver) ObserveUnavailable() {
	o.unavailable++
}

type testServer struct {
	router    *chi.Mux
	store     *store.MemoryStore
	registry  *shortener.Registry
	publisher *recordingPublisher
	observer  *countingObserver
	verifier  *middleware.TokenVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gen, err := nanoid.Standard(8)
	require.NoError(t, err)

	memStore := store.NewMemoryStore()
	registry := shortener.NewRegistry(memStore, gen, 5)
	engine := accounting.NewEngine(registry, memStore, accounting.DefaultWindow, zap.NewNop())
	readModel := analytics.NewReadModel(memStore, memStore)
	publisher := &recordingPublisher{}
	observer := &countingObserver{}
	verifier := middleware.NewTokenVerifier(testSecret)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.RequestMeta(api))

	handlers.RegisterRoutes(api,
		handlers.NewRedirectHandler(engine, observer, publisher, zap.NewNop()),
		handlers.NewLinkHandler(registry, readModel, publisher, testBaseURL, zap.NewNop()),
		middleware.OwnerIdentity(api, verifier),
	)

	return &testServer{
		router:    router,
		store:     memStore,
		registry:  registry,
		publisher: publisher,
		observer:  observer,
		verifier:  verifier,
	}
}

func (s *testServer) token(t *testing.T, owner string) string {
	t.Helper()

	token, err := s.verifier.Issue(owner, time.Hour)
	require.NoError(t, err)

	return token
}

// do sends a request; a non-empty owner is authenticated with a bearer token.
func (s *testServer) do(t *testing.T, method, path, owner, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, owner))
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func (s *testServer) createLink(t *testing.T, owner string, params shortener.CreateParams) *shortener.Link {
	t.Helper()

	params.OwnerID = owner

	link, err := s.registry.Create(context.Background(), params)
	require.NoError(t, err)

	return link
}
