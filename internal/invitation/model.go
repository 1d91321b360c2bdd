package invitation

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
)

// Status is the lifecycle state of an invitation. Pending moves to one of
// the other states and never back; Refresh only extends a pending one.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// DefaultTTL is how long a new or refreshed invitation stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Invitation represents a row in the invitations table.
type Invitation struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	Email      string // lower-case
	Role       access.Role
	Code       string // 8 chars; the first 6 are the company code
	Status     Status
	InvitedBy  uuid.UUID
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsExpiredAt reports whether the invitation is past its expiry at now.
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}

// IsValidAt reports whether the invitation can be accepted at now.
func (i *Invitation) IsValidAt(now time.Time) bool {
	return i.Status == StatusPending && !i.IsExpiredAt(now)
}
