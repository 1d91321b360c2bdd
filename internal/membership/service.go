// Package membership implements the invitation lifecycle and the team and
// company operations built on it. Every operation authorizes the caller
// through the access policy and reports failures as *Error values.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/auth"
	"github.com/fieldops/crewroster/internal/code"
	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/notify"
	"github.com/fieldops/crewroster/internal/roster"
	"github.com/fieldops/crewroster/internal/store"
)

// TokenIssuer mints a session token for a caller that authenticated with an
// API key, so the e-mail endpoint always receives the inviter's session.
type TokenIssuer interface {
	Issue(identity *auth.Identity) (string, time.Time, error)
}

// Service coordinates the store, code generator, policy and dispatcher.
type Service struct {
	store         store.Store
	codes         *code.Generator
	notifier      notify.Dispatcher
	tokens        TokenIssuer
	roster        *roster.Reconciler
	now           func() time.Time
	ttl           time.Duration
	notifyTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTTL overrides invitation.DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithGenerator replaces the default code generator.
func WithGenerator(g *code.Generator) Option {
	return func(s *Service) {
		s.codes = g
	}
}

// WithDispatcher sets where invitation e-mails are sent.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *Service) {
		s.notifier = d
	}
}

// WithTokenIssuer sets the issuer used for API key callers' bearer tokens.
func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *Service) {
		s.tokens = t
	}
}

// WithNotifyTimeout bounds each e-mail dispatch.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.notifyTimeout = d
	}
}

// NewService creates a Service over st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:         st,
		codes:         code.NewGenerator(),
		notifier:      notify.NoopDispatcher{},
		now:           time.Now,
		ttl:           invitation.DefaultTTL,
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.roster = roster.NewReconciler(st, roster.WithClock(s.now))
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func policyCompany(c *company.Company) access.Company {
	return access.Company{ID: c.ID, OwnerID: c.OwnerID}
}

func (s *Service) loadCompany(ctx context.Context, st store.Store, id uuid.UUID) (*company.Company, error) {
	c, err := st.Companies().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			return nil, notFoundf("Company not found.")
		}
		return nil, fmt.Errorf("loading company: %w", err)
	}
	return c, nil
}

// authorizeTeam loads the company and checks the caller may manage its team.
func (s *Service) authorizeTeam(ctx context.Context, st store.Store, caller *auth.Identity, companyID uuid.UUID) (*company.Company, error) {
	if caller == nil {
		return nil, unauthorizedf("You must be signed in to manage a team.")
	}
	c, err := s.loadCompany(ctx, st, companyID)
	if err != nil {
		return nil, err
	}
	if !access.CanManageTeam(caller.Caller(), policyCompany(c)) {
		return nil, unauthorizedf("You do not have permission to manage this team.")
	}
	return c, nil
}

// expire flips a pending invitation found past its expiry. Losing the race
// to another resolver is fine.
func (s *Service) expire(ctx context.Context, st store.Store, inv *invitation.Invitation) error {
	err := st.Invitations().SetStatus(ctx, inv.ID, invitation.StatusExpired, s.clock())
	if err != nil && !errors.Is(err, invitation.ErrNotPending) && !errors.Is(err, invitation.ErrNotFound) {
		return fmt.Errorf("expiring invitation: %w", err)
	}
	inv.Status = invitation.StatusExpired
	slog.Info("invitation expired", "invitationId", inv.ID, "companyId", inv.CompanyID)
	return nil
}

// dispatch sends the invitation e-mail after the records are committed. A
// failure never undoes the invitation; it is reported as a warning.
func (s *Service) dispatch(ctx context.Context, caller *auth.Identity, c *company.Company, inv *invitation.Invitation, m *member.Member) (bool, string) {
	bearer := caller.SessionToken
	if bearer == "" && s.tokens != nil {
		token, _, err := s.tokens.Issue(caller)
		if err != nil {
			slog.Warn("issuing dispatch token failed", "userId", caller.UserID, "error", err)
		} else {
			bearer = token
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	err := s.notifier.SendInvitation(sendCtx, notify.InvitationEmail{
		InvitationID:   inv.ID,
		Email:          inv.Email,
		CompanyName:    c.Name,
		CompanyCode:    c.Code,
		InvitationCode: inv.Code,
		Role:           inv.Role,
		ExpiresAt:      inv.ExpiresAt,
	}, bearer)
	if err != nil {
		depErr := &Error{Kind: KindDependency, Message: "sending invitation email", Err: err}
		slog.Warn("invitation email not sent", "invitationId", inv.ID, "companyId", c.ID, "error", depErr)
		return false, fmt.Sprintf("The invitation was saved but the email could not be sent. Share code %s with %s directly.", inv.Code, inv.Email)
	}

	if m != nil {
		sentAt := s.clock()
		if err := s.store.Members().MarkEmailSent(ctx, m.ID, sentAt); err != nil {
			slog.Warn("recording invitation email failed", "memberId", m.ID, "error", err)
		} else {
			m.EmailSent = true
			m.EmailSentAt = &sentAt
		}
	}
	return true, ""
}
