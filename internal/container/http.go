package container

import (
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/linktrail/internal/accounting"
	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/handlers"
	"github.com/serroba/linktrail/internal/health"
	"github.com/serroba/linktrail/internal/metrics"
	"github.com/serroba/linktrail/internal/middleware"
	"github.com/serroba/linktrail/internal/ratelimit"
	"github.com/serroba/linktrail/internal/shortener"
	"github.com/serroba/linktrail/internal/store"
	"go.uber.org/zap"
)

const janitorInterval = time.Minute

// RateLimitJanitor periodically drops idle keys from the in-memory rate limit store.
type RateLimitJanitor struct {
	stop chan struct{}
	done chan struct{}
}

func startRateLimitJanitor(s *store.RateLimitMemoryStore, maxWindow, interval time.Duration) *RateLimitJanitor {
	j := &RateLimitJanitor{stop: make(chan struct{}), done: make(chan struct{})}

	go func() {
		defer close(j.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(maxWindow)
			case <-j.stop:
				return
			}
		}
	}()

	return j
}

// Shutdown stops the janitor and waits for it to exit.
func (j *RateLimitJanitor) Shutdown() error {
	close(j.stop)
	<-j.done

	return nil
}

// MetricsPackage provides the Prometheus collectors.
func MetricsPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}

// RateLimitPackage provides the policy limiter on the configured store.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*ratelimit.Policy, error) {
		return ratelimit.DefaultPolicy(), nil
	})

	do.Provide(i, func(_ *do.Injector) (*store.RateLimitMemoryStore, error) {
		return store.NewRateLimitMemoryStore(), nil
	})

	do.Provide(i, func(i *do.Injector) (*RateLimitJanitor, error) {
		return startRateLimitJanitor(
			do.MustInvoke[*store.RateLimitMemoryStore](i),
			do.MustInvoke[*ratelimit.Policy](i).LongestWindow(),
			janitorInterval,
		), nil
	})

	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.RateLimitStore {
		case BackendMemory:
			_ = do.MustInvoke[*RateLimitJanitor](i)

			return do.MustInvoke[*store.RateLimitMemoryStore](i), nil
		case BackendRedis:
			return store.NewRateLimitRedisStore(do.MustInvoke[*RedisClient](i).Client), nil
		default:
			return nil, fmt.Errorf("unknown rate limit backend %q", opts.RateLimitStore)
		}
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		return ratelimit.NewPolicyLimiter(
			do.MustInvoke[ratelimit.Store](i),
			do.MustInvoke[*ratelimit.Policy](i),
		), nil
	})
}

// healthComponents lists the dependencies the configuration actually uses.
func healthComponents(i *do.Injector, opts *Options) []health.Component {
	var components []health.Component

	usesRedis := opts.CacheTTLSeconds > 0 || opts.RateLimitStore == BackendRedis || opts.Events == BackendRedis
	if usesRedis {
		components = append(components, health.Component{
			Name:    "redis",
			Checker: health.Redis(do.MustInvoke[*RedisClient](i).Client),
		})
	}

	if opts.Store == BackendPostgres {
		components = append(components, health.Component{
			Name:    "postgres",
			Checker: health.Postgres(do.MustInvoke[*PostgresPool](i).Pool),
		})
	}

	return components
}

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (*middleware.TokenVerifier, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.JWTSecret == "" {
			return nil, fmt.Errorf("owner api: %w (set --jwt-secret)", middleware.ErrMissingSecret)
		}

		return middleware.NewTokenVerifier(opts.JWTSecret), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)

		verifier, err := do.Invoke[*middleware.TokenVerifier](i)
		if err != nil {
			return nil, err
		}

		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		observer := do.MustInvoke[*metrics.Metrics](i)
		publisher := do.MustInvoke[*analytics.Publisher](i)

		router.Handle("/metrics", observer.Handler())

		api := humachi.New(router, huma.DefaultConfig("Link Trail", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.PolicyRateLimiter(
				api,
				do.MustInvoke[*ratelimit.PolicyLimiter](i),
				ratelimit.NewOperationScopeResolver(),
				logger,
			),
		)

		health.RegisterRoutes(api, health.NewHandler(healthComponents(i, opts)...))
		handlers.RegisterRoutes(api,
			handlers.NewRedirectHandler(do.MustInvoke[*accounting.Engine](i), observer, publisher, logger),
			handlers.NewLinkHandler(
				do.MustInvoke[*shortener.Registry](i),
				do.MustInvoke[*analytics.ReadModel](i),
				publisher,
				opts.PublicBaseURL(),
				logger,
			),
			middleware.OwnerIdentity(api, verifier),
		)

		return api, nil
	})
}
