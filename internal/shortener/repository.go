package shortener

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("link not found")

	// ErrCodeConflict is returned by a Repository when the short code is already taken.
	ErrCodeConflict = errors.New("short code already in use")

	// ErrCodeSpaceExhausted means every generation attempt collided.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique short code")
)

// Repository defines the storage operations the registry needs.
type Repository interface {
	// Create inserts a new link. Returns ErrCodeConflict if the code is taken.
	Create(ctx context.Context, link *Link) error
	GetByCode(ctx context.Context, code Code) (*Link, error)
	GetByID(ctx context.Context, id string) (*Link, error)

	// ListByOwner returns the owner's links, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Link, error)

	// Update persists destination, remarks, expiration and status.
	// It must never write the click counter.
	Update(ctx context.Context, link *Link) error
	SetStatus(ctx context.Context, id string, status Status) error

	// Delete removes the link together with all of its visits in one transaction.
	Delete(ctx context.Context, id string) error
}
