package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/shortener"
	"go.uber.org/zap"
)

// toHTTPError maps domain errors to huma status errors. Unknown errors are
// logged and hidden behind a 500.
func toHTTPError(err error, logger *zap.Logger, msg string) error {
	switch {
	case errors.Is(err, shortener.ErrInvalidURL), errors.Is(err, shortener.ErrInvalidCode):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, shortener.ErrCodeConflict):
		return huma.Error409Conflict("short code already in use")
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("link not found")
	case errors.Is(err, analytics.ErrForbidden):
		return huma.Error403Forbidden("link belongs to another owner")
	default:
		logger.Error(msg, zap.Error(err))

		return huma.Error500InternalServerError(msg)
	}
}
