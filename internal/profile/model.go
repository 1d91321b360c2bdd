package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
)

// Profile represents a row in the user_profiles table. ID is the
// authentication identity.
type Profile struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	CompanyID    *uuid.UUID // a user belongs to at most one company
	Role         access.Role
	IsSuperAdmin bool
	APIKeyPrefix string
	APIKeyHash   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Caller converts the profile into the policy's view of it.
func (p *Profile) Caller() access.Caller {
	return access.Caller{
		UserID:       p.ID,
		Role:         p.Role,
		CompanyID:    p.CompanyID,
		IsSuperAdmin: p.IsSuperAdmin,
	}
}
