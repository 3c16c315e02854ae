package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/handler"
	"github.com/reefline/divetrips/internal/middleware"
	"github.com/reefline/divetrips/internal/service"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create   func(ctx context.Context, a domain.Actor, trip domain.Trip) (domain.Trip, error)
	getByID  func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	list     func(ctx context.Context, p domain.PaginationParams) ([]domain.Trip, int64, error)
	update   func(ctx context.Context, a domain.Actor, trip domain.Trip) (domain.Trip, error)
	setState func(ctx context.Context, op string, a domain.Actor, id uuid.UUID) (domain.Trip, error)
	cancel   func(ctx context.Context, a domain.Actor, id uuid.UUID, reason string) (domain.Trip, error)
}

func (m *mockTripServicer) Create(ctx context.Context, a domain.Actor, t domain.Trip) (domain.Trip, error) {
	return m.create(ctx, a, t)
}
func (m *mockTripServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripServicer) List(ctx context.Context, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.list(ctx, p)
}
func (m *mockTripServicer) Update(ctx context.Context, a domain.Actor, t domain.Trip) (domain.Trip, error) {
	return m.update(ctx, a, t)
}
func (m *mockTripServicer) Publish(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return m.setState(ctx, "publish", a, id)
}
func (m *mockTripServicer) Start(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return m.setState(ctx, "start", a, id)
}
func (m *mockTripServicer) Complete(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return m.setState(ctx, "complete", a, id)
}
func (m *mockTripServicer) Cancel(ctx context.Context, a domain.Actor, id uuid.UUID, reason string) (domain.Trip, error) {
	return m.cancel(ctx, a, id, reason)
}

// mockBookingServicer is a test double for handler.BookingServicer.
// The single-booking transitions share one field keyed by operation name.
type mockBookingServicer struct {
	create      func(ctx context.Context, a domain.Actor, tripID uuid.UUID, in service.CreateBookingInput) (service.CreateResult, error)
	action      func(ctx context.Context, op string, a domain.Actor, id uuid.UUID) (domain.Booking, error)
	listByTrip  func(ctx context.Context, a domain.Actor, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)
	listMine    func(ctx context.Context, a domain.Actor) ([]domain.Booking, error)
	update      func(ctx context.Context, a domain.Actor, id uuid.UUID, in service.UpdateBookingInput) (domain.Booking, error)
	cancel      func(ctx context.Context, a domain.Actor, id uuid.UUID, reason string) (service.CancelResult, error)
	payment     func(ctx context.Context, a domain.Actor, ev service.PaymentEvent) (domain.Booking, error)
	price       func(ctx context.Context, tripID uuid.UUID, n int, equipment bool) (domain.PriceBreakdown, error)
	eligibility func(ctx context.Context, tripID, diverID uuid.UUID) (domain.Eligibility, error)
}

func (m *mockBookingServicer) Create(ctx context.Context, a domain.Actor, tripID uuid.UUID, in service.CreateBookingInput) (service.CreateResult, error) {
	return m.create(ctx, a, tripID, in)
}
func (m *mockBookingServicer) Get(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.action(ctx, "get", a, id)
}
func (m *mockBookingServicer) ListByTrip(ctx context.Context, a domain.Actor, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	return m.listByTrip(ctx, a, tripID, p)
}
func (m *mockBookingServicer) ListMine(ctx context.Context, a domain.Actor) ([]domain.Booking, error) {
	return m.listMine(ctx, a)
}
func (m *mockBookingServicer) Update(ctx context.Context, a domain.Actor, id uuid.UUID, in service.UpdateBookingInput) (domain.Booking, error) {
	return m.update(ctx, a, id, in)
}
func (m *mockBookingServicer) Cancel(ctx context.Context, a domain.Actor, id uuid.UUID, reason string) (service.CancelResult, error) {
	return m.cancel(ctx, a, id, reason)
}
func (m *mockBookingServicer) Confirm(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.action(ctx, "confirm", a, id)
}
func (m *mockBookingServicer) GiveParentConsent(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.action(ctx, "consent", a, id)
}
func (m *mockBookingServicer) SignWaiver(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.action(ctx, "waiver", a, id)
}
func (m *mockBookingServicer) CheckIn(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.action(ctx, "check-in", a, id)
}
func (m *mockBookingServicer) Complete(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error) {
	return m.action(ctx, "complete", a, id)
}
func (m *mockBookingServicer) RecordPaymentEvent(ctx context.Context, a domain.Actor, ev service.PaymentEvent) (domain.Booking, error) {
	return m.payment(ctx, a, ev)
}
func (m *mockBookingServicer) CalculatePrice(ctx context.Context, tripID uuid.UUID, n int, equipment bool) (domain.PriceBreakdown, error) {
	return m.price(ctx, tripID, n, equipment)
}
func (m *mockBookingServicer) CheckEligibility(ctx context.Context, tripID, diverID uuid.UUID) (domain.Eligibility, error) {
	return m.eligibility(ctx, tripID, diverID)
}

// mockWaitlistServicer is a test double for handler.WaitlistServicer.
type mockWaitlistServicer struct {
	join  func(ctx context.Context, a domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error)
	leave func(ctx context.Context, a domain.Actor, tripID, diverID uuid.UUID) error
	list  func(ctx context.Context, a domain.Actor, tripID uuid.UUID) ([]domain.WaitlistEntry, error)
	get   func(ctx context.Context, a domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error)
}

func (m *mockWaitlistServicer) Join(ctx context.Context, a domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error) {
	return m.join(ctx, a, tripID)
}
func (m *mockWaitlistServicer) Leave(ctx context.Context, a domain.Actor, tripID, diverID uuid.UUID) error {
	return m.leave(ctx, a, tripID, diverID)
}
func (m *mockWaitlistServicer) List(ctx context.Context, a domain.Actor, tripID uuid.UUID) ([]domain.WaitlistEntry, error) {
	return m.list(ctx, a, tripID)
}
func (m *mockWaitlistServicer) Get(ctx context.Context, a domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error) {
	return m.get(ctx, a, tripID)
}

// exportFunc adapts a function to handler.ExportServicer.
type exportFunc func(ctx context.Context, a domain.Actor, tripID uuid.UUID) ([]domain.ManifestRow, error)

func (f exportFunc) Manifest(ctx context.Context, a domain.Actor, tripID uuid.UUID) ([]domain.ManifestRow, error) {
	return f(ctx, a, tripID)
}

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.TripServicer     = (*mockTripServicer)(nil)
	_ handler.BookingServicer  = (*mockBookingServicer)(nil)
	_ handler.WaitlistServicer = (*mockWaitlistServicer)(nil)
	_ handler.ExportServicer   = exportFunc(nil)
)

// ---- helpers ---------------------------------------------------------------

var (
	diver = domain.Actor{ID: uuid.New(), Role: domain.RoleDiver}
	owner = domain.Actor{ID: uuid.New(), Role: domain.RoleCenterOwner}
)

// asActor stands in for middleware.NewAuthenticator: it puts a fixed actor
// in the request context without any token handling.
func asActor(a domain.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithActor(r.Context(), a)))
		})
	}
}

// newHTTPHandler wires a Server with the given deps into its chi router,
// the same way main.go does in production.
func newHTTPHandler(d handler.Deps, a domain.Actor) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return handler.NewServer(d).Routes(asActor(a))
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func tripFixture() domain.Trip {
	now := time.Now().UTC()
	return domain.Trip{
		ID:                        uuid.New(),
		OwnerID:                   owner.ID,
		Title:                     "Wreck of the Umbria",
		DepartureTime:             time.Date(2030, 6, 1, 7, 0, 0, 0, time.UTC),
		MaxParticipants:           8,
		Status:                    domain.TripStatusPublished,
		PricePerPerson:            450,
		CancellationDeadlineHours: 48,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
}

func bookingFixture(tripID uuid.UUID) domain.Booking {
	now := time.Now().UTC()
	return domain.Booking{
		ID:             uuid.New(),
		TripID:         tripID,
		DiverID:        diver.ID,
		Status:         domain.BookingStatusPending,
		NumberOfDivers: 1,
		Price:          domain.PriceBreakdown{Base: 450, Total: 450},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
