package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope groups requests that share a budget.
type Scope string

const (
	// ScopeGlobal is added to every request.
	ScopeGlobal Scope = "global"
	// ScopeRead covers safe methods on the management API.
	ScopeRead Scope = "read"
	// ScopeWrite covers mutating methods on the management API.
	ScopeWrite Scope = "write"
	// ScopeRedirect covers public short code resolution.
	ScopeRedirect Scope = "redirect"
)

// MetadataKey is the huma operation metadata key holding an EndpointConfig.
const MetadataKey = "rateLimit"

// EndpointConfig is per-operation rate limit configuration, attached to huma
// operations through Metadata[MetadataKey].
type EndpointConfig struct {
	// Scope replaces method-based detection. Ignored when Limits is set.
	Scope Scope

	// Limits replace the policy limits for this operation.
	Limits []LimitConfig

	// Disabled skips rate limiting entirely.
	Disabled bool
}

// Metadata returns operation metadata carrying the config.
func (c EndpointConfig) Metadata() map[string]any {
	return map[string]any{MetadataKey: c}
}

// ScopeResolver determines which scopes apply to a given request.
type ScopeResolver interface {
	Resolve(ctx huma.Context) []Scope
}

// OperationScopeResolver uses the scope pinned in operation metadata and falls
// back to the HTTP method: safe methods read, everything else writes.
type OperationScopeResolver struct{}

func NewOperationScopeResolver() *OperationScopeResolver {
	return &OperationScopeResolver{}
}

func (r *OperationScopeResolver) Resolve(ctx huma.Context) []Scope {
	if cfg := EndpointConfigFrom(ctx); cfg != nil && cfg.Scope != "" {
		return []Scope{ScopeGlobal, cfg.Scope}
	}

	return []Scope{ScopeGlobal, MethodScope(ctx.Method())}
}

// MethodScope classifies an HTTP method.
func MethodScope(method string) Scope {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ScopeRead
	default:
		return ScopeWrite
	}
}

// EndpointConfigFrom returns the operation's EndpointConfig, or nil.
func EndpointConfigFrom(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
