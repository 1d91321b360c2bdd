package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
)

// ErrNotFound is returned when a profile record is not found.
var ErrNotFound = errors.New("user profile not found")

// ErrDuplicateEmail is returned when a profile with the same e-mail exists.
var ErrDuplicateEmail = errors.New("user profile email already exists")

// ErrLinkedElsewhere is returned when linking a profile that already
// belongs to a different company.
var ErrLinkedElsewhere = errors.New("user profile already linked to another company")

// Repository provides operations on the user_profiles table.
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	FindByPrefix(ctx context.Context, prefix string) ([]Profile, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Profile, error)
	// LinkCompany sets company and role only if the profile is unlinked or
	// already linked to the same company; otherwise ErrLinkedElsewhere.
	LinkCompany(ctx context.Context, id, companyID uuid.UUID, role access.Role) error
	// UnlinkCompany clears the company if it is companyID.
	UnlinkCompany(ctx context.Context, id, companyID uuid.UUID) error
	CountSuperAdmins(ctx context.Context) (int, error)
}
