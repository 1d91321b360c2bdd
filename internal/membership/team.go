package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/auth"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/profile"
	"github.com/fieldops/crewroster/internal/roster"
	"github.com/fieldops/crewroster/internal/store"
)

// ResendResult is returned by ResendInvite.
type ResendResult struct {
	Invitation *invitation.Invitation
	EmailSent  bool
	Warning    string
}

// Permissions is the caller's standing in one company.
type Permissions struct {
	CompanyID     uuid.UUID           `json:"companyId"`
	IsOwner       bool                `json:"isOwner"`
	CanManageTeam bool                `json:"canManageTeam"`
	Capabilities  access.Capabilities `json:"capabilities"`
}

// AddMember invites email with a paired team member row and sends the
// invitation e-mail.
func (s *Service) AddMember(ctx context.Context, caller *auth.Identity, companyID uuid.UUID, email, role string) (*CreateResult, error) {
	return s.Create(ctx, caller, CreateInput{
		CompanyID:    companyID,
		Email:        email,
		Role:         role,
		CreateMember: true,
		SendEmail:    true,
	})
}

// RemoveMember removes a person from the company. memberID is a team member
// id or, for people who joined without one, their user id. The member row
// and any pending invitation are deleted and the profile is unlinked.
func (s *Service) RemoveMember(ctx context.Context, caller *auth.Identity, companyID, memberID uuid.UUID) error {
	return s.store.WithTx(ctx, func(tx store.Store) error {
		c, err := s.authorizeTeam(ctx, tx, caller, companyID)
		if err != nil {
			return err
		}

		var (
			email  string
			userID *uuid.UUID
		)
		m, err := tx.Members().GetByID(ctx, memberID)
		switch {
		case err == nil && m.CompanyID == companyID:
			email, userID = m.Email, m.UserID
		case err == nil, errors.Is(err, member.ErrNotFound):
			m = nil
			p, err := tx.Profiles().GetByID(ctx, memberID)
			if err != nil || p.CompanyID == nil || *p.CompanyID != companyID {
				if err != nil && !errors.Is(err, profile.ErrNotFound) {
					return fmt.Errorf("loading user profile: %w", err)
				}
				return notFoundf("Team member not found.")
			}
			email, userID = p.Email, &p.ID
		default:
			return fmt.Errorf("loading team member: %w", err)
		}
		email = profile.NormalizeEmail(email)

		var p *profile.Profile
		if userID != nil {
			p, err = tx.Profiles().GetByID(ctx, *userID)
		} else {
			p, err = tx.Profiles().GetByEmail(ctx, email)
		}
		if err != nil {
			if !errors.Is(err, profile.ErrNotFound) {
				return fmt.Errorf("loading user profile: %w", err)
			}
			p = nil
		}

		if c.OwnerID != nil && ((userID != nil && *userID == *c.OwnerID) || (p != nil && p.ID == *c.OwnerID)) {
			return conflictf("The company owner cannot be removed.")
		}

		if m != nil {
			if err := tx.Members().Delete(ctx, m.ID); err != nil {
				return fmt.Errorf("deleting team member: %w", err)
			}
		} else if other, err := tx.Members().GetByEmail(ctx, companyID, email); err == nil {
			if err := tx.Members().Delete(ctx, other.ID); err != nil {
				return fmt.Errorf("deleting team member: %w", err)
			}
		} else if !errors.Is(err, member.ErrNotFound) {
			return fmt.Errorf("loading team member: %w", err)
		}

		pending, err := tx.Invitations().GetPendingByEmail(ctx, companyID, email)
		switch {
		case err == nil:
			if err := tx.Invitations().Delete(ctx, pending.ID); err != nil {
				return fmt.Errorf("deleting pending invitation: %w", err)
			}
		case !errors.Is(err, invitation.ErrNotFound):
			return fmt.Errorf("loading pending invitation: %w", err)
		}

		if p != nil {
			if err := tx.Profiles().UnlinkCompany(ctx, p.ID, companyID); err != nil {
				return fmt.Errorf("unlinking user profile: %w", err)
			}
		}

		slog.Info("team member removed", "companyId", companyID, "memberId", memberID)
		return nil
	})
}

// ResendInvite gives the member's pending invitation a new code and expiry
// and sends the e-mail again.
func (s *Service) ResendInvite(ctx context.Context, caller *auth.Identity, companyID, memberID uuid.UUID) (*ResendResult, error) {
	c, err := s.authorizeTeam(ctx, s.store, caller, companyID)
	if err != nil {
		return nil, err
	}

	m, err := s.store.Members().GetByID(ctx, memberID)
	if err != nil || m.CompanyID != companyID {
		if err != nil && !errors.Is(err, member.ErrNotFound) {
			return nil, fmt.Errorf("loading team member: %w", err)
		}
		return nil, notFoundf("Team member not found.")
	}

	inv, err := s.pendingInvitationFor(ctx, m)
	if err != nil {
		return nil, err
	}

	inv, err = s.refresh(ctx, c, inv, true)
	if err != nil {
		return nil, err
	}

	result := &ResendResult{Invitation: inv}
	result.EmailSent, result.Warning = s.dispatch(ctx, caller, c, inv, m)
	return result, nil
}

func (s *Service) pendingInvitationFor(ctx context.Context, m *member.Member) (*invitation.Invitation, error) {
	if m.InvitationID != nil {
		inv, err := s.store.Invitations().GetByID(ctx, *m.InvitationID)
		switch {
		case err == nil && inv.Status == invitation.StatusPending:
			return inv, nil
		case err != nil && !errors.Is(err, invitation.ErrNotFound):
			return nil, fmt.Errorf("loading invitation: %w", err)
		}
	}

	inv, err := s.store.Invitations().GetPendingByEmail(ctx, m.CompanyID, profile.NormalizeEmail(m.Email))
	if err != nil {
		if errors.Is(err, invitation.ErrNotFound) {
			return nil, notFoundf("This team member has no pending invitation.")
		}
		return nil, fmt.Errorf("loading pending invitation: %w", err)
	}
	return inv, nil
}

// ListMembers returns the reconciled roster of a company the caller can see.
func (s *Service) ListMembers(ctx context.Context, caller *auth.Identity, companyID uuid.UUID) ([]roster.Entry, error) {
	if caller == nil {
		return nil, unauthorizedf("You must be signed in to view a team.")
	}
	c, err := s.loadCompany(ctx, s.store, companyID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewCompany(caller.Caller(), policyCompany(c)) {
		return nil, unauthorizedf("You do not have access to this company.")
	}

	entries, err := s.roster.ListMembers(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return entries, nil
}

// CanManageTeam reports whether caller may manage companyID's team.
func (s *Service) CanManageTeam(ctx context.Context, caller *auth.Identity, companyID uuid.UUID) (bool, error) {
	perms, err := s.Permissions(ctx, caller, companyID)
	if err != nil {
		return false, err
	}
	return perms.CanManageTeam, nil
}

// Permissions evaluates every capability of caller for companyID.
func (s *Service) Permissions(ctx context.Context, caller *auth.Identity, companyID uuid.UUID) (*Permissions, error) {
	if caller == nil {
		return nil, unauthorizedf("You must be signed in.")
	}
	c, err := s.loadCompany(ctx, s.store, companyID)
	if err != nil {
		return nil, err
	}

	pc := policyCompany(c)
	caps := access.Evaluate(caller.Caller(), pc)
	return &Permissions{
		CompanyID:     c.ID,
		IsOwner:       access.IsOwner(caller.Caller(), pc),
		CanManageTeam: caps.ManageTeam,
		Capabilities:  caps,
	}, nil
}
