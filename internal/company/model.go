package company

import (
	"time"

	"github.com/google/uuid"
)

// Company represents a row in the companies table.
type Company struct {
	ID                uuid.UUID
	Name              string
	Code              string     // 6-char join code, unique across all companies
	OwnerID           *uuid.UUID // set once the owner has accepted
	OwnerPendingEmail *string    // set while the owner invitation is outstanding
	IsActive          bool
	IsProtected       bool // hidden from public lookup and never deleted
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OwnerResolved reports whether the owner account exists.
func (c *Company) OwnerResolved() bool {
	return c.OwnerID != nil
}

// Joinable reports whether the company may be found by its public code.
func (c *Company) Joinable() bool {
	return c.IsActive && !c.IsProtected
}
