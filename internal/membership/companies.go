package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

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

const maxCompanyName = 200

// CreateCompanyInput describes a new company and the e-mail of its owner.
type CreateCompanyInput struct {
	Name        string
	OwnerEmail  string
	IsProtected bool
	SendEmail   bool
}

// CreateCompanyResult holds the company and the owner's admin invitation.
type CreateCompanyResult struct {
	Company    *company.Company
	Invitation *invitation.Invitation
	Member     *member.Member
	EmailSent  bool
	Warning    string
}

// CreateCompany creates a company with a fresh join code and invites its
// owner as admin. Only super admins may create companies.
func (s *Service) CreateCompany(ctx context.Context, caller *auth.Identity, in CreateCompanyInput) (*CreateCompanyResult, error) {
	if caller == nil || !caller.IsSuperAdmin {
		return nil, unauthorizedf("Only operators can create companies.")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxCompanyName {
		return nil, validationf("Company name is required and must be at most %d characters.", maxCompanyName)
	}
	ownerEmail := profile.NormalizeEmail(in.OwnerEmail)
	if !profile.ValidEmail(ownerEmail) {
		return nil, validationf("Enter a valid owner email address.")
	}

	var result CreateCompanyResult
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		c := &company.Company{
			Name:              name,
			OwnerPendingEmail: &ownerEmail,
			IsActive:          true,
			IsProtected:       in.IsProtected,
		}
		_, err := s.codes.Claim(ctx, code.CompanyLength, func(ctx context.Context, candidate string) error {
			c.Code = candidate
			return tx.WithTx(ctx, func(sp store.Store) error {
				return sp.Companies().Create(ctx, c)
			})
		})
		if err != nil {
			return fmt.Errorf("claiming company code: %w", err)
		}

		inv, m, err := s.createInvitation(ctx, tx, caller, c, ownerEmail, access.RoleAdmin, true)
		if err != nil {
			return err
		}

		result = CreateCompanyResult{Company: c, Invitation: inv, Member: m}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("company created", "companyId", result.Company.ID, "code", result.Company.Code)

	if in.SendEmail {
		result.EmailSent, result.Warning = s.dispatch(ctx, caller, result.Company, result.Invitation, result.Member)
	}
	return &result, nil
}

// GetCompany returns a company the caller belongs to, owns, or operates.
func (s *Service) GetCompany(ctx context.Context, caller *auth.Identity, id uuid.UUID) (*company.Company, error) {
	if caller == nil {
		return nil, unauthorizedf("You must be signed in.")
	}
	c, err := s.loadCompany(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if !access.CanViewCompany(caller.Caller(), policyCompany(c)) {
		return nil, unauthorizedf("You do not have access to this company.")
	}
	return c, nil
}

// LookupCompany resolves a public join code. Inactive and protected
// companies are reported as not found.
func (s *Service) LookupCompany(ctx context.Context, rawCode string) (*company.Company, error) {
	cd := code.Normalize(rawCode)
	if !code.WellFormed(cd, code.CompanyLength) {
		return nil, validationf("Company codes are %d letters and digits.", code.CompanyLength)
	}

	c, err := s.store.Companies().GetByCode(ctx, cd)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			return nil, notFoundf("No company matches that code.")
		}
		return nil, fmt.Errorf("looking up company code: %w", err)
	}
	if !c.Joinable() {
		return nil, notFoundf("No company matches that code.")
	}
	return c, nil
}
