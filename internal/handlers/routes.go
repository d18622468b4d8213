package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linktrail/internal/ratelimit"
)

// ReservedPaths are answered with 204 before short code resolution.
var ReservedPaths = []string{"/favicon.ico", "/robots.txt"}

// RegisterRoutes registers the public redirect routes and the owner API.
// ownerOnly authenticates the management operations.
func RegisterRoutes(
	api huma.API,
	redirect *RedirectHandler,
	links *LinkHandler,
	ownerOnly func(ctx huma.Context, next func(huma.Context)),
) {
	for _, path := range ReservedPaths {
		huma.Register(api, huma.Operation{
			OperationID:   "reserved-" + path[1:],
			Method:        http.MethodGet,
			Path:          path,
			Summary:       "Reserved path",
			Tags:          []string{"Redirect"},
			DefaultStatus: http.StatusNoContent,
			Hidden:        true,
			Metadata:      ratelimit.EndpointConfig{Disabled: true}.Metadata(),
		}, redirect.Reserved)
	}

	// GET /{code} - Resolve and account a visit
	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to destination",
		Description: "Redirects to the destination of the short code and records a click. " +
			"Clients sending Accept: application/json receive the destination in the body instead.",
		Tags: []string{"Redirect"},
		Errors: []int{
			http.StatusNotFound,
			http.StatusGone,
		},
		Metadata: ratelimit.EndpointConfig{Scope: ratelimit.ScopeRedirect}.Metadata(),
	}, redirect.Redirect)

	owner := huma.Middlewares{ownerOnly}

	huma.Register(api, huma.Operation{
		OperationID:   "create-link",
		Method:        http.MethodPost,
		Path:          "/api/links",
		Summary:       "Create link",
		Description:   "Creates a short link with a generated or custom code.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   owner,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, links.Create)

	huma.Register(api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/api/links",
		Summary:     "List links and visits",
		Tags:        []string{"Links"},
		Middlewares: owner,
	}, links.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-link",
		Method:      http.MethodGet,
		Path:        "/api/links/{id}",
		Summary:     "Get link",
		Tags:        []string{"Links"},
		Middlewares: owner,
		Errors:      []int{http.StatusNotFound},
	}, links.Get)

	huma.Register(api, huma.Operation{
		OperationID: "update-link",
		Method:      http.MethodPatch,
		Path:        "/api/links/{id}",
		Summary:     "Update link",
		Description: "Changes destination, remarks or expiration. Extending the expiration reactivates the link.",
		Tags:        []string{"Links"},
		Middlewares: owner,
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, links.Update)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-link",
		Method:        http.MethodDelete,
		Path:          "/api/links/{id}",
		Summary:       "Delete link",
		Description:   "Deletes the link and all of its visits.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   owner,
		Errors:        []int{http.StatusNotFound},
	}, links.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "link-stats",
		Method:      http.MethodGet,
		Path:        "/api/links/{id}/stats",
		Summary:     "Link statistics",
		Tags:        []string{"Analytics"},
		Middlewares: owner,
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, links.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "link-qr",
		Method:      http.MethodGet,
		Path:        "/api/links/{id}/qr",
		Summary:     "Link QR code",
		Tags:        []string{"Links"},
		Middlewares: owner,
		Errors:      []int{http.StatusNotFound},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "PNG image of the short URL",
				Content: map[string]*huma.MediaType{
					"image/png": {},
				},
			},
		},
	}, links.QRCode)
}
