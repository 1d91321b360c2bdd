package member

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a team member record is not found.
var ErrNotFound = errors.New("team member not found")

// ErrDuplicateEmail is returned when the company already has a member row
// for the e-mail.
var ErrDuplicateEmail = errors.New("team member email already exists")

// Repository provides operations on the team_members table.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByEmail(ctx context.Context, companyID uuid.UUID, email string) (*Member, error)
	GetByInvitation(ctx context.Context, invitationID uuid.UUID) (*Member, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Member, error)
	// Update writes role, status, user id and invitation id.
	Update(ctx context.Context, m *Member) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}
