package company

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a company record is not found.
var ErrNotFound = errors.New("company not found")

// ErrOwnerAlreadyResolved is returned when resolving an owner that is already set.
var ErrOwnerAlreadyResolved = errors.New("company owner already resolved")

// Repository provides operations on the companies table.
type Repository interface {
	// Create inserts c. A duplicate code returns code.ErrTaken so the caller
	// can draw another candidate.
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*Company, error)
	GetByCode(ctx context.Context, code string) (*Company, error)
	// ResolveOwner sets owner_id and clears owner_pending_email in one write.
	ResolveOwner(ctx context.Context, id, ownerID uuid.UUID) error
}
