package handlers

import "context"

type requestMetaKey struct{}

type ownerKey struct{}

// RequestMeta holds HTTP request metadata used for click accounting.
type RequestMeta struct {
	IPCandidates []string
	SocketAddr   string
	UserAgent    string
	Referrer     string
	Accept       string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

// ContextWithOwner stores the authenticated owner ID.
func ContextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the authenticated owner ID, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerKey{}).(string)

	return v, ok && v != ""
}
