package invitation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an invitation record is not found.
var ErrNotFound = errors.New("invitation not found")

// ErrDuplicatePending is returned when a pending invitation already exists
// for the same company and e-mail.
var ErrDuplicatePending = errors.New("pending invitation already exists")

// ErrNotPending is returned by conditional updates when the invitation is no
// longer pending.
var ErrNotPending = errors.New("invitation is not pending")

// Repository provides operations on the invitations table.
type Repository interface {
	// Create inserts inv. A code held by any existing invitation returns
	// code.ErrTaken; a second pending invitation for the pair returns
	// ErrDuplicatePending.
	Create(ctx context.Context, inv *Invitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invitation, error)
	// GetByCode returns the invitation holding code. Codes are never reused,
	// so the row may be resolved.
	GetByCode(ctx context.Context, code string) (*Invitation, error)
	GetPendingByEmail(ctx context.Context, companyID uuid.UUID, email string) (*Invitation, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, status *Status) ([]Invitation, error)
	// SetStatus moves a pending invitation to status. Returns ErrNotPending
	// if it was already resolved.
	SetStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) error
	// Refresh extends a pending invitation and replaces its code. A code
	// collision returns code.ErrTaken.
	Refresh(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}
