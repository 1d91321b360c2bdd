package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/profile"
	"github.com/fieldops/crewroster/internal/store"
)

// Reconciler loads a company's records and reduces them to a roster.
type Reconciler struct {
	store store.Store
	now   func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the clock used to drop expired invitations.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler creates a Reconciler reading from st.
func NewReconciler(st store.Store, opts ...Option) *Reconciler {
	r := &Reconciler{store: st, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListMembers returns the deduplicated roster for companyID. A missing
// company surfaces as company.ErrNotFound.
func (r *Reconciler) ListMembers(ctx context.Context, companyID uuid.UUID) ([]Entry, error) {
	c, err := r.store.Companies().GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading company: %w", err)
	}

	members, err := r.store.Members().ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading team members: %w", err)
	}

	profiles, err := r.store.Profiles().ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading user profiles: %w", err)
	}

	pending := invitation.StatusPending
	invitations, err := r.store.Invitations().ListByCompany(ctx, companyID, &pending)
	if err != nil {
		return nil, fmt.Errorf("loading invitations: %w", err)
	}

	in := Input{
		Company:     *c,
		Members:     members,
		Profiles:    profiles,
		Invitations: invitations,
		Now:         r.now(),
	}

	if c.OwnerID != nil && !containsProfile(profiles, *c.OwnerID) {
		owner, err := r.store.Profiles().GetByID(ctx, *c.OwnerID)
		switch {
		case err == nil:
			in.Owner = owner
		case errors.Is(err, profile.ErrNotFound):
		default:
			return nil, fmt.Errorf("loading owner profile: %w", err)
		}
	}

	return Reduce(in), nil
}

func containsProfile(profiles []profile.Profile, id uuid.UUID) bool {
	for _, p := range profiles {
		if p.ID == id {
			return true
		}
	}
	return false
}
