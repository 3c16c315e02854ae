// Package memory is an in-process implementation of the repo interfaces.
// It backs the STORAGE=memory mode and the service tests. A single mutex
// serializes every transaction, and a transaction works on a copy of the
// state that is swapped in only on commit. Diver profiles and site fees are
// reference data owned by other systems; they sit outside transactions
// behind their own lock, so they can be read while a transaction is open.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
)

type state struct {
	trips    map[uuid.UUID]domain.Trip
	bookings map[uuid.UUID]domain.Booking
	waitlist map[uuid.UUID]domain.WaitlistEntry
	refunds  []domain.RefundRequest
}

func newState() *state {
	return &state{
		trips:    make(map[uuid.UUID]domain.Trip),
		bookings: make(map[uuid.UUID]domain.Booking),
		waitlist: make(map[uuid.UUID]domain.WaitlistEntry),
	}
}

// clone copies the maps. Values are copied by assignment; pointer fields
// inside them are never mutated in place by this package.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.trips {
		c.trips[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.waitlist {
		c.waitlist[k] = v
	}
	c.refunds = append(c.refunds, s.refunds...)
	return c
}

// reference is the read-mostly data other systems own.
type reference struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]domain.DiverProfile
	contacts map[uuid.UUID]domain.DiverContact
	siteFees map[uuid.UUID]float64
}

// Store holds all in-memory data.
type Store struct {
	mu    sync.Mutex
	state *state
	ref   reference
	now   func() time.Time
	last  time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		state: newState(),
		ref: reference{
			profiles: make(map[uuid.UUID]domain.DiverProfile),
			contacts: make(map[uuid.UUID]domain.DiverContact),
			siteFees: make(map[uuid.UUID]float64),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// stamp returns the current time, nudged forward so that timestamps handed
// out by the store strictly increase. The caller holds s.mu.
func (s *Store) stamp() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// handle gives a repo access to the state it should operate on.
// Outside a transaction each call takes the store lock; inside one the
// lock is already held and the transaction's working copy is used.
type handle struct {
	store *Store
	tx    *state
}

func (h handle) acquire() (*state, func()) {
	if h.tx != nil {
		return h.tx, func() {}
	}
	h.store.mu.Lock()
	return h.store.state, h.store.mu.Unlock
}

func (s *Store) repos(h handle) repo.Repos {
	return repo.Repos{
		Trips:    &tripRepo{h: h},
		Bookings: &bookingRepo{h: h},
		Waitlist: &waitlistRepo{h: h},
		Refunds:  &refundRepo{h: h},
	}
}

// Repos returns repositories that each lock the store per call.
func (s *Store) Repos() repo.Repos {
	return s.repos(handle{store: s})
}

// Divers returns the read-only diver profile repository.
func (s *Store) Divers() repo.DiverRepo {
	return &diverRepo{ref: &s.ref}
}

// Sites returns the site fee repository.
func (s *Store) Sites() repo.SiteRepo {
	return &siteRepo{ref: &s.ref}
}

// WithinTx runs fn with exclusive access to a copy of the state and
// publishes the copy only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(s.repos(handle{store: s, tx: work})); err != nil {
		return err
	}
	s.state = work
	return nil
}

// PutProfile stores a diver profile and contact details.
func (s *Store) PutProfile(p domain.DiverProfile, c domain.DiverContact) {
	s.ref.mu.Lock()
	defer s.ref.mu.Unlock()
	s.ref.profiles[p.DiverID] = p
	c.DiverID = p.DiverID
	s.ref.contacts[p.DiverID] = c
}

// PutSiteFee sets the conservation fee for a dive site.
func (s *Store) PutSiteFee(siteID uuid.UUID, fee float64) {
	s.ref.mu.Lock()
	defer s.ref.mu.Unlock()
	s.ref.siteFees[siteID] = fee
}

// Refunds returns every refund request recorded so far.
func (s *Store) Refunds() []domain.RefundRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RefundRequest(nil), s.state.refunds...)
}

var (
	_ repo.Transactor   = (*Store)(nil)
	_ repo.TripRepo     = (*tripRepo)(nil)
	_ repo.BookingRepo  = (*bookingRepo)(nil)
	_ repo.WaitlistRepo = (*waitlistRepo)(nil)
	_ repo.RefundRepo   = (*refundRepo)(nil)
	_ repo.DiverRepo    = (*diverRepo)(nil)
	_ repo.SiteRepo     = (*siteRepo)(nil)
)
