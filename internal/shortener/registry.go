package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CodeGenerator generates candidate short codes.
type CodeGenerator func() string

const defaultMaxAttempts = 5

// CreateParams describes a new link. An empty Code asks the registry to generate one.
type CreateParams struct {
	OwnerID     string
	Destination string
	Code        Code
	ExpiresAt   *time.Time
	Remarks     string
}

// UpdateParams holds the mutable link fields. Nil fields are left unchanged.
type UpdateParams struct {
	Destination *string
	Remarks     *string
	ExpiresAt   *time.Time
}

// Registry owns the mapping from short code to destination.
type Registry struct {
	store        Repository
	generateCode CodeGenerator
	maxAttempts  int
	now          func() time.Time
}

// NewRegistry creates a registry. maxAttempts bounds code generation retries on collision.
func NewRegistry(store Repository, generator CodeGenerator, maxAttempts int) *Registry {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}

	return &Registry{
		store:        store,
		generateCode: generator,
		maxAttempts:  maxAttempts,
		now:          time.Now,
	}
}

// Resolve looks a link up by code without any owner filter.
func (r *Registry) Resolve(ctx context.Context, code Code) (*Link, error) {
	return r.ResolveAt(ctx, code, r.now())
}

// ResolveAt is Resolve with the status derived at the given instant.
func (r *Registry) ResolveAt(ctx context.Context, code Code, at time.Time) (*Link, error) {
	link, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	return MarkInactiveIfExpired(link, at), nil
}

// FindOwned looks a link up by id, scoped to its owner.
func (r *Registry) FindOwned(ctx context.Context, id, ownerID string) (*Link, error) {
	link, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if link.OwnerID != ownerID {
		return nil, ErrNotFound
	}

	return MarkInactiveIfExpired(link, r.now()), nil
}

// ListOwned returns every link of the owner, newest first.
func (r *Registry) ListOwned(ctx context.Context, ownerID string) ([]*Link, error) {
	links, err := r.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	for i, link := range links {
		links[i] = MarkInactiveIfExpired(link, now)
	}

	return links, nil
}

// Create validates the destination and stores a new link, generating a code
// when none is supplied. Generated codes are retried on collision; a
// caller-supplied code that collides fails with ErrCodeConflict.
func (r *Registry) Create(ctx context.Context, params CreateParams) (*Link, error) {
	destination, err := NormalizeDestination(params.Destination)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	link := &Link{
		ID:          uuid.NewString(),
		OwnerID:     params.OwnerID,
		Destination: destination,
		Status:      StatusActive,
		ExpiresAt:   params.ExpiresAt,
		Remarks:     params.Remarks,
		CreatedAt:   now,
	}
	link = MarkInactiveIfExpired(link, now)

	if params.Code != "" {
		if err = ValidateCustomCode(params.Code); err != nil {
			return nil, err
		}

		link.Code = params.Code

		if err = r.store.Create(ctx, link); err != nil {
			return nil, err
		}

		return link, nil
	}

	for range r.maxAttempts {
		link.Code = Code(r.generateCode())

		err = r.store.Create(ctx, link)
		if err == nil {
			return link, nil
		}

		if !errors.Is(err, ErrCodeConflict) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, r.maxAttempts)
}

// Update changes destination, remarks or expiration of an owned link.
// Moving the expiration into the future reactivates an expired link.
func (r *Registry) Update(ctx context.Context, id, ownerID string, params UpdateParams) (*Link, error) {
	link, err := r.FindOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	updated := *link

	if params.Destination != nil {
		destination, err := NormalizeDestination(*params.Destination)
		if err != nil {
			return nil, err
		}

		updated.Destination = destination
	}

	if params.Remarks != nil {
		updated.Remarks = *params.Remarks
	}

	now := r.now()

	if params.ExpiresAt != nil {
		expiresAt := *params.ExpiresAt
		updated.ExpiresAt = &expiresAt

		if expiresAt.After(now) {
			updated.Status = StatusActive
		}
	}

	result := MarkInactiveIfExpired(&updated, now)

	if err = r.store.Update(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// Deactivate persists an inactive status that was derived lazily.
func (r *Registry) Deactivate(ctx context.Context, link *Link) error {
	return r.store.SetStatus(ctx, link.ID, StatusInactive)
}

// Delete removes an owned link and all its visits.
func (r *Registry) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := r.FindOwned(ctx, id, ownerID); err != nil {
		return err
	}

	return r.store.Delete(ctx, id)
}
