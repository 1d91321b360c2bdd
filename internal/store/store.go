// Package store groups the four record collections behind one handle that
// can also run a unit of work in a transaction.
package store

import (
	"context"

	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/profile"
)

// Store is the persistence boundary used by the services.
type Store interface {
	Companies() company.Repository
	Invitations() invitation.Repository
	Members() member.Repository
	Profiles() profile.Repository

	// WithTx runs fn against a transaction-scoped Store. If fn returns an
	// error nothing it wrote is kept.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
