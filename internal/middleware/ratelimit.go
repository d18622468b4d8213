package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linktrail/internal/ratelimit"
	"go.uber.org/zap"
)

// clientKey identifies a client for rate limiting by address and User-Agent.
func clientKey(ctx huma.Context) string {
	hash := sha256.Sum256([]byte(clientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(hash[:])
}

// PolicyRateLimiter limits requests per client. An operation's
// ratelimit.EndpointConfig can switch limiting off, pin a scope, or replace
// the policy with route-specific limits.
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.EndpointConfigFrom(ctx)
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		key := clientKey(ctx)

		var (
			allowed  bool
			exceeded *ratelimit.LimitExceeded
			err      error
		)

		if cfg != nil && len(cfg.Limits) > 0 {
			// a config is only ever read from an operation
			allowed, exceeded, err = limiter.AllowRoute(ctx.Context(), key, ctx.Operation().Path, cfg.Limits)
		} else {
			allowed, exceeded, err = limiter.Allow(ctx.Context(), key, resolver.Resolve(ctx))
		}

		switch {
		case err != nil:
			logger.Error("rate limit check failed", zap.String("path", operationPath(ctx)), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)
		case !allowed:
			reject(api, ctx, exceeded, logger)
		default:
			next(ctx)
		}
	}
}

// reject writes a 429. Retry-After is the window length, an upper bound on
// when the oldest counted request leaves the window.
func reject(api huma.API, ctx huma.Context, exceeded *ratelimit.LimitExceeded, logger *zap.Logger) {
	if exceeded == nil {
		_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")

		return
	}

	logger.Warn("rate limit exceeded",
		zap.String("path", operationPath(ctx)),
		zap.String("method", ctx.Method()),
		zap.String("scope", string(exceeded.Scope)),
		zap.Int64("count", exceeded.Count),
		zap.Int64("max", exceeded.Config.Max),
		zap.Duration("window", exceeded.Config.Window),
		zap.String("client_ip", clientIP(ctx)),
	)

	if wait := exceeded.RetryAfter(); wait > 0 {
		ctx.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}

	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, exceeded.Error())
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}
