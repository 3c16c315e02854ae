package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
)

// TripService implements business logic for Trip operations.
type TripService struct {
	tx       repo.Transactor
	trips    repo.TripRepo
	waitlist *WaitlistManager
	authz    Authorizer
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewTripService constructs a TripService. trips is used for reads outside
// a transaction. waitlist is offered seats freed by a capacity raise.
func NewTripService(tx repo.Transactor, trips repo.TripRepo, waitlist *WaitlistManager, authz Authorizer, notifier Notifier, opts ...Option) *TripService {
	o := buildOptions(opts)
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return &TripService{
		tx:       tx,
		trips:    trips,
		waitlist: waitlist,
		authz:    authz,
		notifier: notifier,
		now:      o.now,
		logger:   o.logger,
	}
}

// Create validates and persists a new draft trip owned by the actor.
// Returns domain.ErrValidation if input violates business rules.
func (s *TripService) Create(ctx context.Context, actor domain.Actor, trip domain.Trip) (domain.Trip, error) {
	if err := authorize(ctx, s.authz, actor, CapCreateTrip, Resource{}); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	trip.Title = strings.TrimSpace(trip.Title)
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, err
	}
	if !trip.DepartureTime.After(s.now()) {
		return domain.Trip{}, fmt.Errorf("%w: departure_time must be in the future", domain.ErrValidation)
	}

	trip.OwnerID = actor.ID
	trip.Status = domain.TripStatusDraft
	trip.CurrentParticipants = 0

	result, err := s.trips.Create(ctx, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	s.logger.InfoContext(ctx, "trip created", "trip_id", result.ID, "owner_id", actor.ID)
	return result, nil
}

// GetByID returns a single trip by ID.
func (s *TripService) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	result, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	return result, nil
}

// List returns one page of trips and the total count.
// Always returns a non-nil slice so callers can safely range over it.
func (s *TripService) List(ctx context.Context, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	trips, total, err := s.trips.ListPaged(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return trips, total, nil
}

// Update validates and updates an existing trip. Capacity cannot shrink
// below the seats already taken, and the published/full status follows the
// new capacity. Seats added by a raise are offered to the head of the
// waitlist first.
func (s *TripService) Update(ctx context.Context, actor domain.Actor, trip domain.Trip) (domain.Trip, error) {
	trip.Title = strings.TrimSpace(trip.Title)
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, err
	}

	var (
		result   domain.Trip
		promoted *domain.WaitlistEntry
	)
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		cur, err := r.Trips.LockForUpdate(ctx, trip.ID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.authz, actor, CapManageTrip, Resource{Trip: &cur}); err != nil {
			return err
		}
		if cur.Status == domain.TripStatusCompleted || cur.Status == domain.TripStatusCancelled {
			return fmt.Errorf("%w: a %s trip cannot be changed", domain.ErrValidation, cur.Status)
		}
		if trip.MaxParticipants < cur.CurrentParticipants {
			return fmt.Errorf("%w: max_participants cannot drop below the %d seats already booked",
				domain.ErrValidation, cur.CurrentParticipants)
		}
		if _, err := r.Trips.Update(ctx, trip); err != nil {
			return err
		}
		result, err = NewCapacityLedger(r.Trips).Recompute(ctx, trip.ID)
		if err != nil {
			return err
		}
		if s.waitlist != nil && result.AvailableSeats() > cur.AvailableSeats() {
			promoted, err = s.waitlist.promoteNext(ctx, r, result)
		}
		return err
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}
	if s.waitlist != nil {
		s.waitlist.announce(ctx, result, promoted)
	}
	return result, nil
}

// Publish opens a draft trip for booking.
func (s *TripService) Publish(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return s.setStatus(ctx, actor, id, "Publish", domain.TripStatusPublished, domain.TripStatusDraft)
}

// Start marks a bookable trip as under way. No more bookings are taken.
func (s *TripService) Start(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return s.setStatus(ctx, actor, id, "Start", domain.TripStatusInProgress, domain.TripStatusPublished, domain.TripStatusFull)
}

// Complete closes a trip that is under way.
func (s *TripService) Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return s.setStatus(ctx, actor, id, "Complete", domain.TripStatusCompleted, domain.TripStatusInProgress)
}

// Cancel calls off a trip. Every active booking on it is cancelled and its
// seats released, and paid bookings are refunded in full through the refund
// outbox since the operator cancelled. The waitlist is cleared. Booked and
// queued divers are all notified.
func (s *TripService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (domain.Trip, error) {
	var (
		result    domain.Trip
		cancelled []domain.Booking
		queued    []domain.WaitlistEntry
	)
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		cur, err := r.Trips.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.authz, actor, CapManageTrip, Resource{Trip: &cur}); err != nil {
			return err
		}
		if cur.Status == domain.TripStatusCompleted || cur.Status == domain.TripStatusCancelled {
			return fmt.Errorf("%w: trip is already %s", domain.ErrValidation, cur.Status)
		}

		if result, err = r.Trips.SetStatus(ctx, id, domain.TripStatusCancelled); err != nil {
			return err
		}

		// ListByTrip orders by creation time, so cancelling while paging
		// does not shift later pages.
		now := s.now()
		ledger := NewCapacityLedger(r.Trips)
		for page := 1; ; page++ {
			bookings, _, err := r.Bookings.ListByTrip(ctx, id, domain.PaginationParams{Page: page, Limit: domain.MaxPageLimit})
			if err != nil {
				return err
			}
			for _, b := range bookings {
				if b.Status.Terminal() || !b.Status.CanTransitionTo(domain.BookingStatusCancelled) {
					continue
				}
				updated, err := cancelBooking(ctx, r, b, actor.ID, reason, b.PaidBalance(), now)
				if err != nil {
					return err
				}
				if result, err = ledger.Release(ctx, id, b.NumberOfDivers); err != nil {
					return err
				}
				cancelled = append(cancelled, updated)
			}
			if len(bookings) < domain.MaxPageLimit {
				break
			}
		}

		if queued, err = r.Waitlist.ListByTrip(ctx, id); err != nil {
			return err
		}
		for _, e := range queued {
			if err := r.Waitlist.Remove(ctx, id, e.DiverID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Cancel: %w", err)
	}

	s.logger.InfoContext(ctx, "trip cancelled", "trip_id", id,
		"bookings_cancelled", len(cancelled), "waitlist_cleared", len(queued))
	for _, b := range cancelled {
		bookingID := b.ID
		s.notifier.Notify(ctx, domain.Notification{
			Kind:         domain.NotificationTripCancelled,
			DiverID:      b.DiverID,
			TripID:       id,
			BookingID:    &bookingID,
			TripTitle:    result.Title,
			RefundAmount: b.RefundAmount,
		})
	}
	for _, e := range queued {
		s.notifier.Notify(ctx, domain.Notification{
			Kind:      domain.NotificationTripCancelled,
			DiverID:   e.DiverID,
			TripID:    id,
			TripTitle: result.Title,
		})
	}
	return result, nil
}

// setStatus moves a trip to next when its current status is one of from.
func (s *TripService) setStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, op string, next domain.TripStatus, from ...domain.TripStatus) (domain.Trip, error) {
	var result domain.Trip
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		cur, err := r.Trips.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.authz, actor, CapManageTrip, Resource{Trip: &cur}); err != nil {
			return err
		}
		allowed := false
		for _, f := range from {
			if cur.Status == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: cannot move trip from %s to %s", domain.ErrValidation, cur.Status, next)
		}
		if _, err := r.Trips.SetStatus(ctx, id, next); err != nil {
			return err
		}
		result, err = NewCapacityLedger(r.Trips).Recompute(ctx, id)
		return err
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.%s: %w", op, err)
	}
	s.logger.InfoContext(ctx, "trip status changed", "trip_id", id, "status", result.Status)
	return result, nil
}

// validateTrip enforces business rules common to both Create and Update.
func validateTrip(t domain.Trip) error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if t.DepartureTime.IsZero() {
		return fmt.Errorf("%w: departure_time is required", domain.ErrValidation)
	}
	if t.MaxParticipants < 1 {
		return fmt.Errorf("%w: max_participants must be at least 1", domain.ErrValidation)
	}
	if t.PricePerPerson < 0 {
		return fmt.Errorf("%w: price_per_person must not be negative", domain.ErrValidation)
	}
	if t.EquipmentRentalPrice != nil && *t.EquipmentRentalPrice < 0 {
		return fmt.Errorf("%w: equipment_rental_price must not be negative", domain.ErrValidation)
	}
	if t.CancellationDeadlineHours < 0 {
		return fmt.Errorf("%w: cancellation_deadline_hours must not be negative", domain.ErrValidation)
	}
	e := t.Eligibility
	if e.MinAge < 0 || e.MinLoggedDives < 0 {
		return fmt.Errorf("%w: eligibility minimums must not be negative", domain.ErrValidation)
	}
	if e.MaxAge != nil && *e.MaxAge < e.MinAge {
		return fmt.Errorf("%w: max_age must not be below min_age", domain.ErrValidation)
	}
	if e.MinCertificationLevel != "" {
		if _, ok := CertificationRank(e.MinCertificationLevel); !ok {
			return fmt.Errorf("%w: unknown certification level %q", domain.ErrValidation, e.MinCertificationLevel)
		}
	}
	return nil
}
