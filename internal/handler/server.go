// Package handler implements the HTTP handlers for the dive trip API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, booking.go, etc.) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/service"
)

// TripServicer defines the trip operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	Create(ctx context.Context, actor domain.Actor, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Trip, int64, error)
	Update(ctx context.Context, actor domain.Actor, trip domain.Trip) (domain.Trip, error)
	Publish(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)
	Start(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)
	Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (domain.Trip, error)
}

// BookingServicer defines the booking operations the handlers depend on.
type BookingServicer interface {
	Create(ctx context.Context, actor domain.Actor, tripID uuid.UUID, in service.CreateBookingInput) (service.CreateResult, error)
	Get(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error)
	ListByTrip(ctx context.Context, actor domain.Actor, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)
	ListMine(ctx context.Context, actor domain.Actor) ([]domain.Booking, error)
	Update(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, in service.UpdateBookingInput) (domain.Booking, error)
	Cancel(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, reason string) (service.CancelResult, error)
	Confirm(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error)
	GiveParentConsent(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error)
	SignWaiver(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error)
	CheckIn(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error)
	Complete(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error)
	RecordPaymentEvent(ctx context.Context, actor domain.Actor, ev service.PaymentEvent) (domain.Booking, error)
	CalculatePrice(ctx context.Context, tripID uuid.UUID, n int, needsEquipment bool) (domain.PriceBreakdown, error)
	CheckEligibility(ctx context.Context, tripID, diverID uuid.UUID) (domain.Eligibility, error)
}

// WaitlistServicer defines the waitlist operations the handlers depend on.
type WaitlistServicer interface {
	Join(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error)
	Leave(ctx context.Context, actor domain.Actor, tripID, diverID uuid.UUID) error
	List(ctx context.Context, actor domain.Actor, tripID uuid.UUID) ([]domain.WaitlistEntry, error)
	Get(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error)
}

// ExportServicer builds trip manifests.
type ExportServicer interface {
	Manifest(ctx context.Context, actor domain.Actor, tripID uuid.UUID) ([]domain.ManifestRow, error)
}

// Pinger reports whether a backing store is reachable. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of every handler.
type Server struct {
	trips    TripServicer
	bookings BookingServicer
	waitlist WaitlistServicer
	export   ExportServicer
	db       Pinger
	openAPI  []byte
	logger   *slog.Logger
}

// Deps lists what NewServer wires together. DB and OpenAPI are optional.
type Deps struct {
	Trips    TripServicer
	Bookings BookingServicer
	Waitlist WaitlistServicer
	Export   ExportServicer
	DB       Pinger
	OpenAPI  []byte
	Logger   *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		trips:    d.Trips,
		bookings: d.Bookings,
		waitlist: d.Waitlist,
		export:   d.Export,
		db:       d.DB,
		openAPI:  d.OpenAPI,
		logger:   logger,
	}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(Deps{})
}

// Routes mounts every endpoint on a chi router. authn guards everything
// except /healthz and /openapi.yaml and must put the actor in the request
// context (middleware.NewAuthenticator).
func (s *Server) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/trips", func(r chi.Router) {
			r.Post("/", s.CreateTrip)
			r.Get("/", s.ListTrips)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetTrip)
				r.Put("/", s.UpdateTrip)
				r.Post("/publish", s.PublishTrip)
				r.Post("/start", s.StartTrip)
				r.Post("/complete", s.CompleteTrip)
				r.Post("/cancel", s.CancelTrip)

				r.Post("/price", s.QuotePrice)
				r.Get("/eligibility", s.CheckEligibility)
				r.Get("/manifest", s.GetManifest)

				r.Post("/bookings", s.CreateBooking)
				r.Get("/bookings", s.ListTripBookings)

				r.Post("/waitlist", s.JoinWaitlist)
				r.Get("/waitlist", s.ListWaitlist)
				r.Get("/waitlist/me", s.GetMyWaitlistEntry)
				r.Delete("/waitlist/me", s.LeaveWaitlist)
				r.Delete("/waitlist/{diverId}", s.RemoveFromWaitlist)
			})
		})

		r.Route("/bookings/{id}", func(r chi.Router) {
			r.Get("/", s.GetBooking)
			r.Patch("/", s.UpdateBooking)
			r.Post("/cancel", s.CancelBooking)
			r.Post("/confirm", s.ConfirmBooking)
			r.Post("/consent", s.GiveParentConsent)
			r.Post("/waiver", s.SignWaiver)
			r.Post("/check-in", s.CheckInBooking)
			r.Post("/complete", s.CompleteBooking)
		})

		r.Get("/me/bookings", s.ListMyBookings)
		r.Post("/payments/events", s.RecordPaymentEvent)
	})

	return r
}
