// Package storetest holds the behavior every store.Store implementation
// must share. Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/code"
	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/profile"
	"github.com/fieldops/crewroster/internal/store"
)

// Opener returns an empty store for one subtest.
type Opener func(t *testing.T) store.Store

// Run executes the contract against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("Companies", func(t *testing.T) { testCompanies(t, open(t)) })
	t.Run("Invitations", func(t *testing.T) { testInvitations(t, open(t)) })
	t.Run("InvitationRefresh", func(t *testing.T) { testInvitationRefresh(t, open(t)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, open(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, open(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, open(t)) })
	t.Run("NestedTx", func(t *testing.T) { testNestedTx(t, open(t)) })
}

func newCompany(t *testing.T, st store.Store, cd string) *company.Company {
	t.Helper()
	pending := "owner@acme.test"
	c := &company.Company{Name: "Acme " + cd, Code: cd, OwnerPendingEmail: &pending, IsActive: true}
	require.NoError(t, st.Companies().Create(context.Background(), c))
	return c
}

func newInvitation(t *testing.T, st store.Store, companyID uuid.UUID, email, cd string) *invitation.Invitation {
	t.Helper()
	inv := &invitation.Invitation{
		CompanyID: companyID,
		Email:     email,
		Role:      access.RoleFieldTech,
		Code:      cd,
		InvitedBy: uuid.New(),
		ExpiresAt: time.Now().Add(invitation.DefaultTTL).UTC().Truncate(time.Second),
	}
	require.NoError(t, st.Invitations().Create(context.Background(), inv))
	return inv
}

func newProfile(t *testing.T, st store.Store, email string) *profile.Profile {
	t.Helper()
	p := &profile.Profile{Email: email, APIKeyPrefix: "ck_" + email[:3], APIKeyHash: "hash"}
	require.NoError(t, st.Profiles().Create(context.Background(), p))
	return p
}

func testCompanies(t *testing.T, st store.Store) {
	ctx := context.Background()
	repo := st.Companies()

	c := newCompany(t, st, "ACME23")
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	err := repo.Create(ctx, &company.Company{Name: "Copycat", Code: "ACME23", IsActive: true})
	assert.ErrorIs(t, err, code.ErrTaken)

	_, err = repo.GetByCode(ctx, "ZZZZ99")
	assert.ErrorIs(t, err, company.ErrNotFound)

	got, err := repo.GetByCode(ctx, "ACME23")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	require.NotNil(t, got.OwnerPendingEmail)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, company.ErrNotFound)

	owner := uuid.New()
	require.NoError(t, repo.ResolveOwner(ctx, c.ID, owner))
	require.NoError(t, repo.ResolveOwner(ctx, c.ID, owner), "resolving to the same owner is idempotent")
	assert.ErrorIs(t, repo.ResolveOwner(ctx, c.ID, uuid.New()), company.ErrOwnerAlreadyResolved)
	assert.ErrorIs(t, repo.ResolveOwner(ctx, uuid.New(), owner), company.ErrNotFound)

	got, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, owner, *got.OwnerID)
	assert.Nil(t, got.OwnerPendingEmail, "owner and pending e-mail are mutually exclusive")
}

func testInvitations(t *testing.T, st store.Store) {
	ctx := context.Background()
	repo := st.Invitations()
	c := newCompany(t, st, "BCDEFG")

	first := newInvitation(t, st, c.ID, "jane@acme.test", "BCDEFG22")
	assert.Equal(t, invitation.StatusPending, first.Status)

	err := repo.Create(ctx, &invitation.Invitation{
		CompanyID: c.ID, Email: "jane@acme.test", Role: access.RoleAdmin,
		Code: "BCDEFG33", InvitedBy: uuid.New(), ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, invitation.ErrDuplicatePending)

	err = repo.Create(ctx, &invitation.Invitation{
		CompanyID: c.ID, Email: "joe@acme.test", Role: access.RoleAdmin,
		Code: "BCDEFG22", InvitedBy: uuid.New(), ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, code.ErrTaken)

	pending, err := repo.GetPendingByEmail(ctx, c.ID, "jane@acme.test")
	require.NoError(t, err)
	assert.Equal(t, first.ID, pending.ID)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.SetStatus(ctx, first.ID, invitation.StatusAccepted, at))
	assert.ErrorIs(t, repo.SetStatus(ctx, first.ID, invitation.StatusCancelled, at), invitation.ErrNotPending)

	accepted, err := repo.GetByCode(ctx, "BCDEFG22")
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	_, err = repo.GetPendingByEmail(ctx, c.ID, "jane@acme.test")
	assert.ErrorIs(t, err, invitation.ErrNotFound)

	// A resolved invitation frees the pair but keeps its code.
	err = repo.Create(ctx, &invitation.Invitation{
		CompanyID: c.ID, Email: "jane@acme.test", Role: access.RoleAdmin,
		Code: "BCDEFG22", InvitedBy: uuid.New(), ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, code.ErrTaken)

	second := newInvitation(t, st, c.ID, "jane@acme.test", "BCDEFG44")
	got, err := repo.GetByCode(ctx, "BCDEFG22")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "a resolved code still resolves to its own invitation")

	status := invitation.StatusAccepted
	list, err := repo.ListByCompany(ctx, c.ID, &status)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	all, err := repo.ListByCompany(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctx, second.ID))
	_, err = repo.GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, invitation.ErrNotFound)
}

func testInvitationRefresh(t *testing.T, st store.Store) {
	ctx := context.Background()
	repo := st.Invitations()
	c := newCompany(t, st, "CDEFGH")

	a := newInvitation(t, st, c.ID, "a@acme.test", "CDEFGH22")
	b := newInvitation(t, st, c.ID, "b@acme.test", "CDEFGH33")

	later := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.Refresh(ctx, a.ID, "CDEFGH44", later))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "CDEFGH44", got.Code)
	assert.True(t, got.ExpiresAt.Equal(later))

	assert.ErrorIs(t, repo.Refresh(ctx, a.ID, b.Code, later), code.ErrTaken)

	require.NoError(t, repo.SetStatus(ctx, b.ID, invitation.StatusExpired, time.Now()))
	assert.ErrorIs(t, repo.Refresh(ctx, b.ID, "CDEFGH55", later), invitation.ErrNotPending)
	assert.ErrorIs(t, repo.Refresh(ctx, a.ID, b.Code, later), code.ErrTaken, "expired rows keep their code")

	// Deleting an invitation releases its code.
	require.NoError(t, repo.Delete(ctx, b.ID))
	require.NoError(t, repo.Refresh(ctx, a.ID, b.Code, later))
}

func testMembers(t *testing.T, st store.Store) {
	ctx := context.Background()
	repo := st.Members()
	c := newCompany(t, st, "DEFGHJ")
	inv := newInvitation(t, st, c.ID, "jane@acme.test", "DEFGHJ22")

	m := &member.Member{
		CompanyID:    c.ID,
		Email:        "jane@acme.test",
		Role:         access.RoleFieldTech,
		Status:       member.StatusPending,
		InvitationID: &inv.ID,
	}
	require.NoError(t, repo.Create(ctx, m))
	assert.NotEqual(t, uuid.Nil, m.ID)

	dup := &member.Member{CompanyID: c.ID, Email: "jane@acme.test", Role: access.RoleAdmin, Status: member.StatusPending}
	assert.ErrorIs(t, repo.Create(ctx, dup), member.ErrDuplicateEmail)

	byInv, err := repo.GetByInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, byInv.ID)

	sentAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.MarkEmailSent(ctx, m.ID, sentAt))

	userID := uuid.New()
	m.UserID = &userID
	m.Status = member.StatusActive
	m.Role = access.RoleSupervisor
	require.NoError(t, repo.Update(ctx, m))

	got, err := repo.GetByEmail(ctx, c.ID, "jane@acme.test")
	require.NoError(t, err)
	assert.Equal(t, member.StatusActive, got.Status)
	assert.Equal(t, access.RoleSupervisor, got.Role)
	assert.True(t, got.EmailSent)
	require.NotNil(t, got.UserID)
	assert.Equal(t, userID, *got.UserID)

	list, err := repo.ListByCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, m.ID))
	_, err = repo.GetByID(ctx, m.ID)
	assert.ErrorIs(t, err, member.ErrNotFound)
}

func testProfiles(t *testing.T, st store.Store) {
	ctx := context.Background()
	repo := st.Profiles()

	p := newProfile(t, st, "jane@acme.test")
	assert.ErrorIs(t, repo.Create(ctx, &profile.Profile{Email: "jane@acme.test", APIKeyPrefix: "x", APIKeyHash: "y"}), profile.ErrDuplicateEmail)

	found, err := repo.FindByPrefix(ctx, p.APIKeyPrefix)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, p.ID, found[0].ID)

	companyID, otherID := uuid.New(), uuid.New()
	require.NoError(t, repo.LinkCompany(ctx, p.ID, companyID, access.RoleFieldTech))
	require.NoError(t, repo.LinkCompany(ctx, p.ID, companyID, access.RoleAdmin), "relinking the same company updates the role")
	assert.ErrorIs(t, repo.LinkCompany(ctx, p.ID, otherID, access.RoleAdmin), profile.ErrLinkedElsewhere)

	members, err := repo.ListByCompany(ctx, companyID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, access.RoleAdmin, members[0].Role)

	require.NoError(t, repo.UnlinkCompany(ctx, p.ID, otherID))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CompanyID, "unlinking a different company is a no-op")

	require.NoError(t, repo.UnlinkCompany(ctx, p.ID, companyID))
	got, err = repo.GetByEmail(ctx, "jane@acme.test")
	require.NoError(t, err)
	assert.Nil(t, got.CompanyID)

	count, err := repo.CountSuperAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	require.NoError(t, repo.Create(ctx, &profile.Profile{Email: "ops@acme.test", IsSuperAdmin: true, APIKeyPrefix: "ck_ops", APIKeyHash: "h"}))
	count, err = repo.CountSuperAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

var errAbort = errors.New("abort")

func testTxRollback(t *testing.T, st store.Store) {
	ctx := context.Background()
	var created uuid.UUID

	err := st.WithTx(ctx, func(tx store.Store) error {
		c := &company.Company{Name: "Ghost", Code: "EFGHJK", IsActive: true}
		if err := tx.Companies().Create(ctx, c); err != nil {
			return err
		}
		created = c.ID
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, err = st.Companies().GetByID(ctx, created)
	assert.ErrorIs(t, err, company.ErrNotFound)
	_, err = st.Companies().GetByCode(ctx, "EFGHJK")
	assert.ErrorIs(t, err, company.ErrNotFound)
}

func testNestedTx(t *testing.T, st store.Store) {
	ctx := context.Background()
	newCompany(t, st, "FGHJKM")

	var kept *company.Company
	err := st.WithTx(ctx, func(tx store.Store) error {
		// A failed insert inside a nested unit must not poison the outer one.
		err := tx.WithTx(ctx, func(sp store.Store) error {
			return sp.Companies().Create(ctx, &company.Company{Name: "Clash", Code: "FGHJKM", IsActive: true})
		})
		if !errors.Is(err, code.ErrTaken) {
			return err
		}

		kept = &company.Company{Name: "Retry", Code: "FGHJKN", IsActive: true}
		return tx.WithTx(ctx, func(sp store.Store) error {
			return sp.Companies().Create(ctx, kept)
		})
	})
	require.NoError(t, err)

	got, err := st.Companies().GetByCode(ctx, "FGHJKN")
	require.NoError(t, err)
	assert.Equal(t, kept.ID, got.ID)
}
