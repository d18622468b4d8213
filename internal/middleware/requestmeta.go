package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linktrail/internal/classifier"
	"github.com/serroba/linktrail/internal/handlers"
)

// RequestMeta is a middleware that captures client address candidates,
// user-agent, referrer and accepted content types into the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			IPCandidates: classifier.ClientIPCandidates(ctx.Header),
			SocketAddr:   ctx.RemoteAddr(),
			UserAgent:    ctx.Header("User-Agent"),
			Referrer:     ctx.Header("Referer"),
			Accept:       ctx.Header("Accept"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// clientIP resolves the normalized client address the same way accounting does.
func clientIP(ctx huma.Context) string {
	return classifier.NormalizeClientIP(classifier.ClientIPCandidates(ctx.Header), ctx.RemoteAddr())
}
