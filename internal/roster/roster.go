// Package roster merges team member rows, linked user profiles and pending
// invitations into one deduplicated member list per company.
//
// Precedence when merging: a user id match beats an e-mail match, which
// beats synthesizing a new entry.
package roster

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/profile"
)

// Source names the record an entry was first built from.
type Source string

const (
	SourceMember     Source = "member"
	SourceProfile    Source = "profile"
	SourceOwner      Source = "owner"
	SourceInvitation Source = "invitation"
)

// Entry is one person on a company's roster.
type Entry struct {
	MemberID     *uuid.UUID    `json:"memberId,omitempty"`
	UserID       *uuid.UUID    `json:"userId,omitempty"`
	Email        string        `json:"email"`
	DisplayName  string        `json:"displayName,omitempty"`
	Role         access.Role   `json:"role"`
	Status       member.Status `json:"status"`
	IsOwner      bool          `json:"isOwner"`
	InvitationID *uuid.UUID    `json:"invitationId,omitempty"`
	EmailSent    bool          `json:"emailSent"`
	Source       Source        `json:"source"`
}

// Input is everything Reduce needs. Profiles not linked to Company are
// ignored. Owner is the owner's profile when it is not among Profiles.
type Input struct {
	Company     company.Company
	Members     []member.Member
	Profiles    []profile.Profile
	Invitations []invitation.Invitation
	Owner       *profile.Profile
	Now         time.Time
}

type reducer struct {
	entries []*Entry
	byUser  map[uuid.UUID]*Entry
	byEmail map[string][]*Entry
	// confirmed holds entries whose user id comes from a profile or the
	// company owner rather than only from a member row.
	confirmed map[*Entry]bool
}

// Reduce builds the roster. It never returns two entries with the same
// user id, and two entries share an e-mail only when exactly one of them
// is tied to a user.
func Reduce(in Input) []Entry {
	r := &reducer{
		byUser:    map[uuid.UUID]*Entry{},
		byEmail:   map[string][]*Entry{},
		confirmed: map[*Entry]bool{},
	}

	for _, m := range in.Members {
		if m.CompanyID != in.Company.ID {
			continue
		}
		r.addMember(m)
	}

	for _, p := range in.Profiles {
		if p.CompanyID == nil || *p.CompanyID != in.Company.ID {
			continue
		}
		e := r.mergeUser(p.ID, p.Email, SourceProfile)
		e.DisplayName = p.DisplayName
		if p.Role.Valid() {
			e.Role = p.Role
		}
		e.Status = member.StatusActive
	}

	if owner := in.Company.OwnerID; owner != nil {
		if _, ok := r.byUser[*owner]; !ok {
			var email, name string
			if in.Owner != nil && in.Owner.ID == *owner {
				email = profile.NormalizeEmail(in.Owner.Email)
				name = in.Owner.DisplayName
			}
			e := r.mergeUser(*owner, email, SourceOwner)
			if e.DisplayName == "" {
				e.DisplayName = name
			}
			e.Role = access.RoleAdmin
			e.Status = member.StatusActive
		}
		r.byUser[*owner].IsOwner = true
	}

	for _, inv := range in.Invitations {
		if inv.CompanyID != in.Company.ID || !inv.IsValidAt(in.Now) {
			continue
		}
		r.addInvitation(inv)
	}

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sortEntries(out)
	return out
}

func (r *reducer) add(e *Entry) {
	r.entries = append(r.entries, e)
	if e.UserID != nil {
		r.byUser[*e.UserID] = e
	}
	if e.Email != "" {
		r.byEmail[e.Email] = append(r.byEmail[e.Email], e)
	}
}

func (r *reducer) addMember(m member.Member) {
	email := profile.NormalizeEmail(m.Email)
	if m.UserID != nil {
		if _, dup := r.byUser[*m.UserID]; dup {
			return
		}
	}
	for _, other := range r.byEmail[email] {
		if other.UserID == nil && m.UserID == nil {
			return
		}
	}

	id := m.ID
	r.add(&Entry{
		MemberID:     &id,
		UserID:       m.UserID,
		Email:        email,
		Role:         m.Role,
		Status:       m.Status,
		InvitationID: m.InvitationID,
		EmailSent:    m.EmailSent,
		Source:       SourceMember,
	})
}

// mergeUser returns the entry for userID, matching an existing entry by
// user id first and then by e-mail. An e-mail match may re-point a member
// row whose stored user id no profile has confirmed. When neither matches a
// new entry is synthesized.
func (r *reducer) mergeUser(userID uuid.UUID, email string, src Source) *Entry {
	email = profile.NormalizeEmail(email)

	if e, ok := r.byUser[userID]; ok {
		r.confirmed[e] = true
		r.setEmail(e, email)
		return e
	}

	if email != "" {
		for _, e := range r.byEmail[email] {
			if e.UserID != nil && r.confirmed[e] {
				continue
			}
			if e.UserID != nil {
				delete(r.byUser, *e.UserID)
			}
			uid := userID
			e.UserID = &uid
			r.byUser[userID] = e
			r.confirmed[e] = true
			r.dropUnlinked(email, e)
			return e
		}
	}

	uid := userID
	e := &Entry{UserID: &uid, Email: email, Source: src}
	r.add(e)
	r.confirmed[e] = true
	r.dropUnlinked(email, e)
	return e
}

// setEmail moves e to email when the user's live e-mail differs from the
// stored one.
func (r *reducer) setEmail(e *Entry, email string) {
	if email == "" || e.Email == email {
		return
	}
	r.removeEmailIndex(e)
	e.Email = email
	r.byEmail[email] = append(r.byEmail[email], e)
	r.dropUnlinked(email, e)
}

// dropUnlinked folds entries for email that no profile backs into keep,
// once keep has claimed the e-mail for a confirmed user.
func (r *reducer) dropUnlinked(email string, keep *Entry) {
	if email == "" {
		return
	}
	var kept []*Entry
	for _, e := range r.byEmail[email] {
		if e != keep && !r.confirmed[e] {
			if e.UserID != nil && r.byUser[*e.UserID] == e {
				delete(r.byUser, *e.UserID)
			}
			if keep.MemberID == nil {
				keep.MemberID = e.MemberID
			}
			if keep.InvitationID == nil {
				keep.InvitationID = e.InvitationID
			}
			keep.EmailSent = keep.EmailSent || e.EmailSent
			r.removeEntry(e)
			continue
		}
		kept = append(kept, e)
	}
	r.byEmail[email] = kept
}

func (r *reducer) removeEmailIndex(e *Entry) {
	list := r.byEmail[e.Email]
	for i, other := range list {
		if other == e {
			r.byEmail[e.Email] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (r *reducer) removeEntry(e *Entry) {
	for i, other := range r.entries {
		if other == e {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *reducer) addInvitation(inv invitation.Invitation) {
	email := profile.NormalizeEmail(inv.Email)
	if existing := r.byEmail[email]; len(existing) > 0 {
		for _, e := range existing {
			if e.InvitationID == nil && e.Status == member.StatusPending {
				id := inv.ID
				e.InvitationID = &id
			}
		}
		return
	}

	id := inv.ID
	r.add(&Entry{
		Email:        email,
		Role:         inv.Role,
		Status:       member.StatusPending,
		InvitationID: &id,
		Source:       SourceInvitation,
	})
}

var statusRank = map[member.Status]int{
	member.StatusActive:   0,
	member.StatusPending:  1,
	member.StatusInactive: 2,
	member.StatusRemoved:  3,
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsOwner != b.IsOwner {
			return a.IsOwner
		}
		ra, oka := statusRank[a.Status]
		rb, okb := statusRank[b.Status]
		if !oka {
			ra = len(statusRank)
		}
		if !okb {
			rb = len(statusRank)
		}
		if ra != rb {
			return ra < rb
		}
		return a.Email < b.Email
	})
}
