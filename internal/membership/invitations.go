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
	"github.com/fieldops/crewroster/internal/profile"
	"github.com/fieldops/crewroster/internal/store"
)

// CreateInput describes a new invitation. Role may be any label ParseRole
// accepts.
type CreateInput struct {
	CompanyID    uuid.UUID
	Email        string
	Role         string
	CreateMember bool
	SendEmail    bool
}

// CreateResult is returned by Create and AddMember. Member is nil unless a
// paired team member was requested. Warning is set when the e-mail could not
// be sent.
type CreateResult struct {
	Invitation *invitation.Invitation
	Member     *member.Member
	EmailSent  bool
	Warning    string
}

// Preview is what an unauthenticated holder of a code may see.
type Preview struct {
	InvitationID uuid.UUID   `json:"invitationId"`
	CompanyID    uuid.UUID   `json:"companyId"`
	CompanyName  string      `json:"companyName"`
	CompanyCode  string      `json:"companyCode"`
	Email        string      `json:"email"`
	Role         access.Role `json:"role"`
	ExpiresAt    time.Time   `json:"expiresAt"`
}

// AcceptResult is the state after a successful Accept.
type AcceptResult struct {
	Invitation *invitation.Invitation
	Company    *company.Company
	Profile    *profile.Profile
	Member     *member.Member
}

// Create issues an invitation for in.Email to join in.CompanyID.
func (s *Service) Create(ctx context.Context, caller *auth.Identity, in CreateInput) (*CreateResult, error) {
	email := profile.NormalizeEmail(in.Email)
	if !profile.ValidEmail(email) {
		return nil, validationf("Enter a valid email address.")
	}
	role, err := access.ParseRole(in.Role)
	if err != nil {
		return nil, validationf("Role must be one of field_tech, supervisor or admin.")
	}

	var (
		c   *company.Company
		inv *invitation.Invitation
		m   *member.Member
	)
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		c, err = s.authorizeTeam(ctx, tx, caller, in.CompanyID)
		if err != nil {
			return err
		}
		inv, m, err = s.createInvitation(ctx, tx, caller, c, email, role, in.CreateMember)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("invitation created", "invitationId", inv.ID, "companyId", c.ID, "role", role)

	result := &CreateResult{Invitation: inv, Member: m}
	if in.SendEmail {
		result.EmailSent, result.Warning = s.dispatch(ctx, caller, c, inv, m)
	}
	return result, nil
}

// createInvitation runs inside tx. It checks the pair is free, claims a
// code with the company code as prefix and optionally pairs a member row.
func (s *Service) createInvitation(ctx context.Context, tx store.Store, caller *auth.Identity, c *company.Company, email string, role access.Role, withMember bool) (*invitation.Invitation, *member.Member, error) {
	now := s.clock()

	pending, err := tx.Invitations().GetPendingByEmail(ctx, c.ID, email)
	switch {
	case err == nil:
		if !pending.IsExpiredAt(now) {
			return nil, nil, conflictf("A pending invitation for %s already exists.", email)
		}
		if err := s.expire(ctx, tx, pending); err != nil {
			return nil, nil, err
		}
	case !errors.Is(err, invitation.ErrNotFound):
		return nil, nil, fmt.Errorf("checking pending invitation: %w", err)
	}

	p, err := tx.Profiles().GetByEmail(ctx, email)
	switch {
	case err == nil:
		if p.CompanyID != nil && *p.CompanyID == c.ID {
			return nil, nil, conflictf("%s is already a member of this company.", email)
		}
	case !errors.Is(err, profile.ErrNotFound):
		return nil, nil, fmt.Errorf("checking user profile: %w", err)
	}

	existing, err := tx.Members().GetByEmail(ctx, c.ID, email)
	switch {
	case err == nil:
		if existing.Status == member.StatusActive {
			return nil, nil, conflictf("%s is already a member of this company.", email)
		}
	case errors.Is(err, member.ErrNotFound):
		existing = nil
	default:
		return nil, nil, fmt.Errorf("checking team member: %w", err)
	}

	inv := &invitation.Invitation{
		CompanyID: c.ID,
		Email:     email,
		Role:      role,
		Status:    invitation.StatusPending,
		InvitedBy: caller.UserID,
		ExpiresAt: now.Add(s.ttl),
	}
	_, err = s.codes.ClaimWithPrefix(ctx, c.Code, code.InvitationLength, func(ctx context.Context, candidate string) error {
		inv.Code = candidate
		return tx.WithTx(ctx, func(sp store.Store) error {
			return sp.Invitations().Create(ctx, inv)
		})
	})
	if err != nil {
		if errors.Is(err, invitation.ErrDuplicatePending) {
			return nil, nil, conflictf("A pending invitation for %s already exists.", email)
		}
		return nil, nil, fmt.Errorf("claiming invitation code: %w", err)
	}

	if !withMember {
		return inv, nil, nil
	}

	invID := inv.ID
	if existing != nil {
		existing.Role = role
		existing.Status = member.StatusPending
		existing.InvitationID = &invID
		if err := tx.Members().Update(ctx, existing); err != nil {
			return nil, nil, fmt.Errorf("updating team member: %w", err)
		}
		return inv, existing, nil
	}

	m := &member.Member{
		CompanyID:    c.ID,
		Email:        email,
		Role:         role,
		Status:       member.StatusPending,
		InvitationID: &invID,
	}
	if err := tx.Members().Create(ctx, m); err != nil {
		if errors.Is(err, member.ErrDuplicateEmail) {
			return nil, nil, conflictf("%s is already on this team.", email)
		}
		return nil, nil, fmt.Errorf("creating team member: %w", err)
	}
	return inv, m, nil
}

// Verify resolves a code for preview without authentication. A pending
// invitation found past its expiry is marked expired.
func (s *Service) Verify(ctx context.Context, rawCode string) (*Preview, error) {
	cd := code.Normalize(rawCode)
	if !code.WellFormed(cd, code.InvitationLength) {
		return nil, validationf("Invitation codes are %d letters and digits.", code.InvitationLength)
	}

	inv, err := s.lookupCode(ctx, s.store, cd)
	if err != nil {
		return nil, err
	}
	if inv.IsExpiredAt(s.clock()) {
		if err := s.expire(ctx, s.store, inv); err != nil {
			return nil, err
		}
		return nil, expired()
	}

	c, err := s.loadCompany(ctx, s.store, inv.CompanyID)
	if err != nil {
		return nil, err
	}

	return &Preview{
		InvitationID: inv.ID,
		CompanyID:    c.ID,
		CompanyName:  c.Name,
		CompanyCode:  c.Code,
		Email:        inv.Email,
		Role:         inv.Role,
		ExpiresAt:    inv.ExpiresAt,
	}, nil
}

// lookupCode returns the pending invitation for cd or the error its
// resolved state maps to.
func (s *Service) lookupCode(ctx context.Context, st store.Store, cd string) (*invitation.Invitation, error) {
	inv, err := st.Invitations().GetByCode(ctx, cd)
	if err != nil {
		if errors.Is(err, invitation.ErrNotFound) {
			return nil, notFoundf("No invitation matches that code.")
		}
		return nil, fmt.Errorf("looking up invitation code: %w", err)
	}

	switch inv.Status {
	case invitation.StatusPending:
		return inv, nil
	case invitation.StatusExpired:
		return nil, expired()
	case invitation.StatusAccepted:
		return nil, conflictf("This invitation has already been accepted.")
	default:
		return nil, notFoundf("No invitation matches that code.")
	}
}

// Accept joins userID to the invitation's company. All writes happen in one
// transaction: on any failure none of them is visible.
func (s *Service) Accept(ctx context.Context, caller *auth.Identity, userID uuid.UUID, rawCode string) (*AcceptResult, error) {
	if caller == nil || caller.UserID != userID {
		return nil, unauthorizedf("You can only accept invitations for your own account.")
	}
	cd := code.Normalize(rawCode)
	if !code.WellFormed(cd, code.InvitationLength) {
		return nil, validationf("Invitation codes are %d letters and digits.", code.InvitationLength)
	}

	var (
		result     AcceptResult
		stale      *invitation.Invitation
		acceptedAt = s.clock()
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		inv, err := s.lookupCode(ctx, tx, cd)
		if err != nil {
			return err
		}
		if inv.IsExpiredAt(acceptedAt) {
			stale = inv
			return expired()
		}

		p, err := tx.Profiles().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, profile.ErrNotFound) {
				return notFoundf("Create your profile before accepting an invitation.")
			}
			return fmt.Errorf("loading user profile: %w", err)
		}
		if profile.NormalizeEmail(p.Email) != inv.Email {
			return unauthorizedf("This invitation was sent to a different email address.")
		}
		if p.CompanyID != nil && *p.CompanyID != inv.CompanyID {
			return conflictf("Your account already belongs to another company.")
		}

		c, err := s.loadCompany(ctx, tx, inv.CompanyID)
		if err != nil {
			return err
		}

		// Accepting never demotes someone already in the company.
		role := inv.Role
		if p.CompanyID != nil && p.Role.AtLeast(role) {
			role = p.Role
		}

		if err := tx.Profiles().LinkCompany(ctx, p.ID, c.ID, role); err != nil {
			if errors.Is(err, profile.ErrLinkedElsewhere) {
				return conflictf("Your account already belongs to another company.")
			}
			return fmt.Errorf("linking user profile: %w", err)
		}
		p.CompanyID = &c.ID
		p.Role = role

		if err := tx.Invitations().SetStatus(ctx, inv.ID, invitation.StatusAccepted, acceptedAt); err != nil {
			if errors.Is(err, invitation.ErrNotPending) {
				return conflictf("This invitation has already been used.")
			}
			return fmt.Errorf("accepting invitation: %w", err)
		}
		inv.Status = invitation.StatusAccepted
		inv.AcceptedAt = &acceptedAt

		m, err := s.activatePairedMember(ctx, tx, inv, p.ID, role)
		if err != nil {
			return err
		}

		if c.OwnerPendingEmail != nil && profile.NormalizeEmail(*c.OwnerPendingEmail) == inv.Email {
			if err := tx.Companies().ResolveOwner(ctx, c.ID, p.ID); err != nil {
				if errors.Is(err, company.ErrOwnerAlreadyResolved) {
					return conflictf("This company already has an owner.")
				}
				return fmt.Errorf("resolving company owner: %w", err)
			}
			c.OwnerID = &p.ID
			c.OwnerPendingEmail = nil
		}

		result = AcceptResult{Invitation: inv, Company: c, Profile: p, Member: m}
		return nil
	})
	if err != nil {
		if stale != nil {
			if expErr := s.expire(ctx, s.store, stale); expErr != nil {
				slog.Warn("marking invitation expired failed", "invitationId", stale.ID, "error", expErr)
			}
		}
		return nil, err
	}

	slog.Info("invitation accepted", "invitationId", result.Invitation.ID, "companyId", result.Company.ID, "userId", userID)
	return &result, nil
}

// activatePairedMember marks the invitation's team member active with role.
// The member is found by invitation first, then by e-mail. Absent is fine.
func (s *Service) activatePairedMember(ctx context.Context, tx store.Store, inv *invitation.Invitation, userID uuid.UUID, role access.Role) (*member.Member, error) {
	m, err := tx.Members().GetByInvitation(ctx, inv.ID)
	if errors.Is(err, member.ErrNotFound) {
		m, err = tx.Members().GetByEmail(ctx, inv.CompanyID, inv.Email)
	}
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading team member: %w", err)
	}

	invID := inv.ID
	uid := userID
	m.UserID = &uid
	m.Role = role
	m.Status = member.StatusActive
	m.InvitationID = &invID
	if err := tx.Members().Update(ctx, m); err != nil {
		return nil, fmt.Errorf("activating team member: %w", err)
	}
	return m, nil
}

// Refresh extends a pending invitation by the TTL from now and, unless
// regenerateCode is false, gives it a new code.
func (s *Service) Refresh(ctx context.Context, caller *auth.Identity, invitationID uuid.UUID, regenerateCode bool) (*invitation.Invitation, error) {
	inv, err := s.loadInvitation(ctx, s.store, invitationID)
	if err != nil {
		return nil, err
	}
	c, err := s.authorizeTeam(ctx, s.store, caller, inv.CompanyID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, c, inv, regenerateCode)
}

func (s *Service) refresh(ctx context.Context, c *company.Company, inv *invitation.Invitation, regenerateCode bool) (*invitation.Invitation, error) {
	if inv.Status != invitation.StatusPending {
		return nil, conflictf("Only pending invitations can be refreshed; this one is %s.", inv.Status)
	}

	expiresAt := s.clock().Add(s.ttl)
	var err error
	if regenerateCode {
		_, err = s.codes.ClaimWithPrefix(ctx, c.Code, code.InvitationLength, func(ctx context.Context, candidate string) error {
			if candidate == inv.Code {
				return code.ErrTaken
			}
			return s.store.Invitations().Refresh(ctx, inv.ID, candidate, expiresAt)
		})
	} else {
		err = s.store.Invitations().Refresh(ctx, inv.ID, inv.Code, expiresAt)
	}
	if err != nil {
		switch {
		case errors.Is(err, invitation.ErrNotPending):
			return nil, conflictf("Only pending invitations can be refreshed.")
		case errors.Is(err, invitation.ErrNotFound):
			return nil, notFoundf("Invitation not found.")
		}
		return nil, fmt.Errorf("refreshing invitation: %w", err)
	}

	refreshed, err := s.loadInvitation(ctx, s.store, inv.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("invitation refreshed", "invitationId", inv.ID, "companyId", c.ID, "newCode", regenerateCode)
	return refreshed, nil
}

// Cancel hard-deletes a pending invitation and its pending team member.
// Cancelling a resolved invitation is a conflict, never a silent no-op.
func (s *Service) Cancel(ctx context.Context, caller *auth.Identity, invitationID uuid.UUID) error {
	return s.store.WithTx(ctx, func(tx store.Store) error {
		inv, err := s.loadInvitation(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		if _, err := s.authorizeTeam(ctx, tx, caller, inv.CompanyID); err != nil {
			return err
		}
		if inv.Status != invitation.StatusPending {
			return conflictf("Only pending invitations can be cancelled; this one is %s.", inv.Status)
		}

		m, err := tx.Members().GetByInvitation(ctx, inv.ID)
		switch {
		case err == nil:
			if m.Status == member.StatusPending {
				if err := tx.Members().Delete(ctx, m.ID); err != nil {
					return fmt.Errorf("deleting pending team member: %w", err)
				}
			} else {
				m.InvitationID = nil
				if err := tx.Members().Update(ctx, m); err != nil {
					return fmt.Errorf("detaching team member: %w", err)
				}
			}
		case !errors.Is(err, member.ErrNotFound):
			return fmt.Errorf("loading team member: %w", err)
		}

		if err := tx.Invitations().Delete(ctx, inv.ID); err != nil {
			return fmt.Errorf("deleting invitation: %w", err)
		}
		slog.Info("invitation cancelled", "invitationId", inv.ID, "companyId", inv.CompanyID)
		return nil
	})
}

// ListInvitations lists a company's invitations, optionally by status.
func (s *Service) ListInvitations(ctx context.Context, caller *auth.Identity, companyID uuid.UUID, status *invitation.Status) ([]invitation.Invitation, error) {
	if _, err := s.authorizeTeam(ctx, s.store, caller, companyID); err != nil {
		return nil, err
	}
	invitations, err := s.store.Invitations().ListByCompany(ctx, companyID, status)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	return invitations, nil
}

func (s *Service) loadInvitation(ctx context.Context, st store.Store, id uuid.UUID) (*invitation.Invitation, error) {
	inv, err := st.Invitations().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, invitation.ErrNotFound) {
			return nil, notFoundf("Invitation not found.")
		}
		return nil, fmt.Errorf("loading invitation: %w", err)
	}
	return inv, nil
}
