package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/code"
	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/profile"
)

type companyRepo struct{ s *Store }

func (r *companyRepo) Create(_ context.Context, c *company.Company) error {
	st, unlock := r.s.lock()
	defer unlock()

	for _, existing := range st.companies {
		if existing.Code == c.Code {
			return code.ErrTaken
		}
	}

	now := r.s.now().UTC()
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now
	st.companies[c.ID] = *c
	return nil
}

func (r *companyRepo) GetByID(_ context.Context, id uuid.UUID) (*company.Company, error) {
	st, unlock := r.s.lock()
	defer unlock()

	c, ok := st.companies[id]
	if !ok {
		return nil, company.ErrNotFound
	}
	return &c, nil
}

func (r *companyRepo) GetByCode(_ context.Context, cd string) (*company.Company, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, c := range st.companies {
		if c.Code == cd {
			return &c, nil
		}
	}
	return nil, company.ErrNotFound
}

func (r *companyRepo) ResolveOwner(_ context.Context, id, ownerID uuid.UUID) error {
	st, unlock := r.s.lock()
	defer unlock()

	c, ok := st.companies[id]
	if !ok {
		return company.ErrNotFound
	}
	if c.OwnerID != nil && *c.OwnerID != ownerID {
		return company.ErrOwnerAlreadyResolved
	}
	c.OwnerID = &ownerID
	c.OwnerPendingEmail = nil
	c.UpdatedAt = r.s.now().UTC()
	st.companies[id] = c
	return nil
}

type invitationRepo struct{ s *Store }

func (r *invitationRepo) Create(_ context.Context, inv *invitation.Invitation) error {
	st, unlock := r.s.lock()
	defer unlock()

	if inv.Status == "" {
		inv.Status = invitation.StatusPending
	}
	for _, existing := range st.invitations {
		if existing.Code == inv.Code {
			return code.ErrTaken
		}
		if inv.Status == invitation.StatusPending && existing.Status == invitation.StatusPending &&
			existing.CompanyID == inv.CompanyID && existing.Email == inv.Email {
			return invitation.ErrDuplicatePending
		}
	}

	now := r.s.now().UTC()
	inv.ID = uuid.New()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	st.seq++
	st.invSeq[inv.ID] = st.seq
	st.invitations[inv.ID] = *inv
	return nil
}

func (r *invitationRepo) GetByID(_ context.Context, id uuid.UUID) (*invitation.Invitation, error) {
	st, unlock := r.s.lock()
	defer unlock()

	inv, ok := st.invitations[id]
	if !ok {
		return nil, invitation.ErrNotFound
	}
	return &inv, nil
}

func (r *invitationRepo) GetByCode(_ context.Context, cd string) (*invitation.Invitation, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, inv := range st.invitations {
		if inv.Code == cd {
			return &inv, nil
		}
	}
	return nil, invitation.ErrNotFound
}

func (r *invitationRepo) GetPendingByEmail(_ context.Context, companyID uuid.UUID, email string) (*invitation.Invitation, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, inv := range st.invitations {
		if inv.CompanyID == companyID && inv.Email == email && inv.Status == invitation.StatusPending {
			return &inv, nil
		}
	}
	return nil, invitation.ErrNotFound
}

func (r *invitationRepo) ListByCompany(_ context.Context, companyID uuid.UUID, status *invitation.Status) ([]invitation.Invitation, error) {
	st, unlock := r.s.lock()
	defer unlock()

	out := []invitation.Invitation{}
	for _, inv := range st.invitations {
		if inv.CompanyID != companyID {
			continue
		}
		if status != nil && inv.Status != *status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		return st.invSeq[out[i].ID] > st.invSeq[out[j].ID]
	})
	return out, nil
}

func (r *invitationRepo) SetStatus(_ context.Context, id uuid.UUID, status invitation.Status, at time.Time) error {
	st, unlock := r.s.lock()
	defer unlock()

	inv, ok := st.invitations[id]
	if !ok {
		return invitation.ErrNotFound
	}
	if inv.Status != invitation.StatusPending {
		return invitation.ErrNotPending
	}
	inv.Status = status
	if status == invitation.StatusAccepted {
		accepted := at
		inv.AcceptedAt = &accepted
	}
	inv.UpdatedAt = at
	st.invitations[id] = inv
	return nil
}

func (r *invitationRepo) Refresh(_ context.Context, id uuid.UUID, cd string, expiresAt time.Time) error {
	st, unlock := r.s.lock()
	defer unlock()

	inv, ok := st.invitations[id]
	if !ok {
		return invitation.ErrNotFound
	}
	if inv.Status != invitation.StatusPending {
		return invitation.ErrNotPending
	}
	for otherID, other := range st.invitations {
		if otherID != id && other.Code == cd {
			return code.ErrTaken
		}
	}
	inv.Code = cd
	inv.ExpiresAt = expiresAt
	inv.UpdatedAt = r.s.now().UTC()
	st.invitations[id] = inv
	return nil
}

func (r *invitationRepo) Delete(_ context.Context, id uuid.UUID) error {
	st, unlock := r.s.lock()
	defer unlock()

	if _, ok := st.invitations[id]; !ok {
		return invitation.ErrNotFound
	}
	delete(st.invitations, id)
	delete(st.invSeq, id)
	return nil
}

type memberRepo struct{ s *Store }

func (r *memberRepo) Create(_ context.Context, m *member.Member) error {
	st, unlock := r.s.lock()
	defer unlock()

	for _, existing := range st.members {
		if existing.CompanyID == m.CompanyID && existing.Email == m.Email {
			return member.ErrDuplicateEmail
		}
	}
	if m.Status == "" {
		m.Status = member.StatusPending
	}

	now := r.s.now().UTC()
	m.ID = uuid.New()
	m.CreatedAt = now
	m.UpdatedAt = now
	st.members[m.ID] = *m
	return nil
}

func (r *memberRepo) GetByID(_ context.Context, id uuid.UUID) (*member.Member, error) {
	st, unlock := r.s.lock()
	defer unlock()

	m, ok := st.members[id]
	if !ok {
		return nil, member.ErrNotFound
	}
	return &m, nil
}

func (r *memberRepo) GetByEmail(_ context.Context, companyID uuid.UUID, email string) (*member.Member, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, m := range st.members {
		if m.CompanyID == companyID && m.Email == email {
			return &m, nil
		}
	}
	return nil, member.ErrNotFound
}

func (r *memberRepo) GetByInvitation(_ context.Context, invitationID uuid.UUID) (*member.Member, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, m := range st.members {
		if m.InvitationID != nil && *m.InvitationID == invitationID {
			return &m, nil
		}
	}
	return nil, member.ErrNotFound
}

func (r *memberRepo) ListByCompany(_ context.Context, companyID uuid.UUID) ([]member.Member, error) {
	st, unlock := r.s.lock()
	defer unlock()

	out := []member.Member{}
	for _, m := range st.members {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memberRepo) Update(_ context.Context, m *member.Member) error {
	st, unlock := r.s.lock()
	defer unlock()

	existing, ok := st.members[m.ID]
	if !ok {
		return member.ErrNotFound
	}
	existing.UserID = m.UserID
	existing.Role = m.Role
	existing.Status = m.Status
	existing.InvitationID = m.InvitationID
	existing.UpdatedAt = r.s.now().UTC()
	st.members[m.ID] = existing
	m.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *memberRepo) MarkEmailSent(_ context.Context, id uuid.UUID, at time.Time) error {
	st, unlock := r.s.lock()
	defer unlock()

	m, ok := st.members[id]
	if !ok {
		return member.ErrNotFound
	}
	sentAt := at
	m.EmailSent = true
	m.EmailSentAt = &sentAt
	m.UpdatedAt = r.s.now().UTC()
	st.members[id] = m
	return nil
}

func (r *memberRepo) Delete(_ context.Context, id uuid.UUID) error {
	st, unlock := r.s.lock()
	defer unlock()

	if _, ok := st.members[id]; !ok {
		return member.ErrNotFound
	}
	delete(st.members, id)
	return nil
}

type profileRepo struct{ s *Store }

func (r *profileRepo) Create(_ context.Context, p *profile.Profile) error {
	st, unlock := r.s.lock()
	defer unlock()

	for _, existing := range st.profiles {
		if existing.Email == p.Email {
			return profile.ErrDuplicateEmail
		}
	}

	now := r.s.now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	st.profiles[p.ID] = *p
	return nil
}

func (r *profileRepo) GetByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	st, unlock := r.s.lock()
	defer unlock()

	p, ok := st.profiles[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return &p, nil
}

func (r *profileRepo) GetByEmail(_ context.Context, email string) (*profile.Profile, error) {
	st, unlock := r.s.lock()
	defer unlock()

	for _, p := range st.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, profile.ErrNotFound
}

func (r *profileRepo) FindByPrefix(_ context.Context, prefix string) ([]profile.Profile, error) {
	st, unlock := r.s.lock()
	defer unlock()

	out := []profile.Profile{}
	for _, p := range st.profiles {
		if p.APIKeyPrefix == prefix {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *profileRepo) ListByCompany(_ context.Context, companyID uuid.UUID) ([]profile.Profile, error) {
	st, unlock := r.s.lock()
	defer unlock()

	out := []profile.Profile{}
	for _, p := range st.profiles {
		if p.CompanyID != nil && *p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *profileRepo) LinkCompany(_ context.Context, id, companyID uuid.UUID, role access.Role) error {
	st, unlock := r.s.lock()
	defer unlock()

	p, ok := st.profiles[id]
	if !ok {
		return profile.ErrNotFound
	}
	if p.CompanyID != nil && *p.CompanyID != companyID {
		return profile.ErrLinkedElsewhere
	}
	cid := companyID
	p.CompanyID = &cid
	p.Role = role
	p.UpdatedAt = r.s.now().UTC()
	st.profiles[id] = p
	return nil
}

func (r *profileRepo) UnlinkCompany(_ context.Context, id, companyID uuid.UUID) error {
	st, unlock := r.s.lock()
	defer unlock()

	p, ok := st.profiles[id]
	if !ok || p.CompanyID == nil || *p.CompanyID != companyID {
		return nil
	}
	p.CompanyID = nil
	p.Role = ""
	p.UpdatedAt = r.s.now().UTC()
	st.profiles[id] = p
	return nil
}

func (r *profileRepo) CountSuperAdmins(context.Context) (int, error) {
	st, unlock := r.s.lock()
	defer unlock()

	n := 0
	for _, p := range st.profiles {
		if p.IsSuperAdmin {
			n++
		}
	}
	return n, nil
}
