package auth

import (
	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/profile"
)

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID       uuid.UUID
	Email        string
	DisplayName  string
	CompanyID    *uuid.UUID // nil until the user joins a company
	Role         access.Role
	IsSuperAdmin bool

	// SessionToken is the bearer token the request was authenticated with.
	// Empty for API key requests.
	SessionToken string
}

// NewIdentity builds an Identity from a stored profile.
func NewIdentity(p *profile.Profile) *Identity {
	return &Identity{
		UserID:       p.ID,
		Email:        p.Email,
		DisplayName:  p.DisplayName,
		CompanyID:    p.CompanyID,
		Role:         p.Role,
		IsSuperAdmin: p.IsSuperAdmin,
	}
}

// Caller converts the identity into the policy's view of it.
func (i *Identity) Caller() access.Caller {
	return access.Caller{
		UserID:       i.UserID,
		Role:         i.Role,
		CompanyID:    i.CompanyID,
		IsSuperAdmin: i.IsSuperAdmin,
	}
}
