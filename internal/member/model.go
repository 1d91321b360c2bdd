package member

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
)

// Status is the state of a team member row.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusRemoved  Status = "removed"
)

// Member represents a row in the team_members table. It tracks the outcome
// of an invitation and is only loosely synchronized with the user profile.
type Member struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	Email        string
	UserID       *uuid.UUID // nil until the invited person registers and accepts
	Role         access.Role
	Status       Status
	InvitationID *uuid.UUID
	EmailSent    bool
	EmailSentAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
