// Package notify delivers invitation e-mails through an external endpoint.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
)

// ErrNotConfigured is returned by NoopDispatcher.
var ErrNotConfigured = errors.New("invitation e-mail delivery is not configured")

// InvitationEmail is the payload sent for every invitation e-mail.
type InvitationEmail struct {
	InvitationID   uuid.UUID   `json:"invitationId"`
	Email          string      `json:"email"`
	CompanyName    string      `json:"companyName"`
	CompanyCode    string      `json:"companyCode"`
	InvitationCode string      `json:"invitationCode"`
	Role           access.Role `json:"role"`
	ExpiresAt      time.Time   `json:"expiresAt"`
}

// Dispatcher sends invitation e-mails. bearer is the inviting user's session
// token and is forwarded to the delivery endpoint.
type Dispatcher interface {
	SendInvitation(ctx context.Context, msg InvitationEmail, bearer string) error
}

// NoopDispatcher is used when no endpoint is configured. It always fails so
// callers report that the code has to be shared manually.
type NoopDispatcher struct{}

// SendInvitation implements Dispatcher.
func (NoopDispatcher) SendInvitation(context.Context, InvitationEmail, string) error {
	return ErrNotConfigured
}

var _ Dispatcher = NoopDispatcher{}
