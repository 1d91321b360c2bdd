// Package memory is an in-process store.Store used by tests and by the
// server when STORE_DRIVER=memory. It enforces the same uniqueness rules as
// the postgres schema.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/company"
	"github.com/fieldops/crewroster/internal/invitation"
	"github.com/fieldops/crewroster/internal/member"
	"github.com/fieldops/crewroster/internal/profile"
	"github.com/fieldops/crewroster/internal/store"
)

type state struct {
	seq         int64
	companies   map[uuid.UUID]company.Company
	invitations map[uuid.UUID]invitation.Invitation
	invSeq      map[uuid.UUID]int64
	members     map[uuid.UUID]member.Member
	profiles    map[uuid.UUID]profile.Profile
}

func newState() *state {
	return &state{
		companies:   map[uuid.UUID]company.Company{},
		invitations: map[uuid.UUID]invitation.Invitation{},
		invSeq:      map[uuid.UUID]int64{},
		members:     map[uuid.UUID]member.Member{},
		profiles:    map[uuid.UUID]profile.Profile{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		companies:   maps.Clone(s.companies),
		invitations: maps.Clone(s.invitations),
		invSeq:      maps.Clone(s.invSeq),
		members:     maps.Clone(s.members),
		profiles:    maps.Clone(s.profiles),
	}
}

// Store implements store.Store in memory. The zero value is not usable;
// call New.
type Store struct {
	mu   *sync.Mutex
	data **state
	now  func() time.Time
	inTx bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	st := newState()
	s := &Store{
		mu:   &sync.Mutex{},
		data: &st,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock acquires the store mutex unless the caller already holds it through
// WithTx. The returned func releases it.
func (s *Store) lock() (*state, func()) {
	if s.inTx {
		return *s.data, func() {}
	}
	s.mu.Lock()
	return *s.data, s.mu.Unlock
}

func (s *Store) Companies() company.Repository       { return &companyRepo{s: s} }
func (s *Store) Invitations() invitation.Repository { return &invitationRepo{s: s} }
func (s *Store) Members() member.Repository         { return &memberRepo{s: s} }
func (s *Store) Profiles() profile.Repository       { return &profileRepo{s: s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// WithTx serializes fn against every other caller and restores the previous
// state if fn fails. Nested calls restore only what the inner fn wrote.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx {
		return s.run(s, fn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(&Store{mu: s.mu, data: s.data, now: s.now, inTx: true}, fn)
}

func (s *Store) run(tx *Store, fn func(store.Store) error) error {
	snapshot := (*s.data).clone()
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

var _ store.Store = (*Store)(nil)
