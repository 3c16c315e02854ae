package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo/memory"
	"github.com/reefline/divetrips/internal/service"
)

// ---- collaborator doubles --------------------------------------------------

// mockProfiles is a hand-written test double for service.ProfileProvider.
type mockProfiles struct {
	getProfile func(ctx context.Context, diverID uuid.UUID) (domain.DiverProfile, error)
}

func (m *mockProfiles) GetProfile(ctx context.Context, diverID uuid.UUID) (domain.DiverProfile, error) {
	return m.getProfile(ctx, diverID)
}

// mockSiteFees is a hand-written test double for service.SiteFeeProvider.
type mockSiteFees struct {
	feePerDiver func(ctx context.Context, siteID uuid.UUID) (*float64, error)
}

func (m *mockSiteFees) FeePerDiver(ctx context.Context, siteID uuid.UUID) (*float64, error) {
	return m.feePerDiver(ctx, siteID)
}

var (
	_ service.ProfileProvider = (*mockProfiles)(nil)
	_ service.SiteFeeProvider = (*mockSiteFees)(nil)
)

// recordingNotifier keeps every notification handed to it.
type recordingNotifier struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) ofKind(k domain.NotificationKind) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.got {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ---- fixture ---------------------------------------------------------------

var baseTime = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// fixture wires every service over a fresh in-memory store.
type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
	trips    *service.TripService
	bookings *service.BookingService
	waitlist *service.WaitlistManager
	owner    domain.Actor
	admin    domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	clock := &fakeClock{t: baseTime}
	notifier := &recordingNotifier{}
	opts := []service.Option{service.WithClock(clock.Now), service.WithLogger(quietLogger())}
	authz := service.OwnershipPolicy{}

	pricing := service.NewPricingEngine(store.Sites(), service.DefaultPricingPolicy(), opts...)
	waitlist := service.NewWaitlistManager(store, store.Repos(), authz, notifier, 24*time.Hour, opts...)

	return &fixture{
		store:    store,
		clock:    clock,
		notifier: notifier,
		trips:    service.NewTripService(store, store.Repos().Trips, waitlist, authz, notifier, opts...),
		bookings: service.NewBookingService(store, store.Repos(), store.Divers(), pricing, waitlist, authz, notifier, opts...),
		waitlist: waitlist,
		owner:    domain.Actor{ID: uuid.New(), Role: domain.RoleCenterOwner},
		admin:    domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin},
	}
}

// newDiver registers an adult diver profile and returns the diver's actor.
func (f *fixture) newDiver() domain.Actor {
	return f.newDiverWithProfile(func(*domain.DiverProfile) {})
}

func (f *fixture) newDiverWithProfile(mutate func(p *domain.DiverProfile)) domain.Actor {
	a := domain.Actor{ID: uuid.New(), Role: domain.RoleDiver}
	dob := baseTime.AddDate(-30, 0, 0)
	p := domain.DiverProfile{
		DiverID:          a.ID,
		DateOfBirth:      &dob,
		TotalLoggedDives: 40,
		Certifications: []domain.Certification{
			{Level: "Advanced Open Water", Agency: "PADI", VerificationStatus: domain.VerificationVerified},
		},
	}
	mutate(&p)
	f.store.PutProfile(p, domain.DiverContact{Name: "Diver", Email: a.ID.String() + "@example.com"})
	return a
}

// publishedTrip creates and publishes a trip owned by f.owner.
func (f *fixture) publishedTrip(t *testing.T, mutate func(tr *domain.Trip)) domain.Trip {
	t.Helper()
	tr := validTrip()
	if mutate != nil {
		mutate(&tr)
	}
	created, err := f.trips.Create(context.Background(), f.owner, tr)
	require.NoError(t, err)
	published, err := f.trips.Publish(context.Background(), f.owner, created.ID)
	require.NoError(t, err)
	return published
}

// book creates a booking that must succeed.
func (f *fixture) book(t *testing.T, diver domain.Actor, tripID uuid.UUID, n int) domain.Booking {
	t.Helper()
	res, err := f.bookings.Create(context.Background(), diver, tripID, service.CreateBookingInput{NumberOfDivers: n})
	require.NoError(t, err)
	require.Equal(t, service.OutcomeBooked, res.Outcome)
	return *res.Booking
}

// pay marks a booking paid through the payment event path.
func (f *fixture) pay(t *testing.T, bookingID uuid.UUID) domain.Booking {
	t.Helper()
	b, err := f.bookings.RecordPaymentEvent(context.Background(), f.admin, service.PaymentEvent{
		BookingID: bookingID,
		Status:    domain.BookingStatusPaid,
		Reference: "pay_" + bookingID.String()[:8],
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) trip(t *testing.T, id uuid.UUID) domain.Trip {
	t.Helper()
	tr, err := f.store.Repos().Trips.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tr
}

func validTrip() domain.Trip {
	return domain.Trip{
		Title:                     "Red Sea Wrecks",
		DepartureTime:             baseTime.Add(7 * 24 * time.Hour),
		MaxParticipants:           10,
		PricePerPerson:            500,
		EquipmentRentalPrice:      ptr(100.0),
		CancellationDeadlineHours: 24,
	}
}

// assertDense fails unless entries carry positions 1..len(entries) in order.
func assertDense(t *testing.T, entries []domain.WaitlistEntry) {
	t.Helper()
	for i, e := range entries {
		require.Equal(t, i+1, e.Position, "positions must be dense and ordered")
	}
}
