package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
)

// ProfileProvider reads diver profiles. repo.DiverRepo satisfies it.
type ProfileProvider interface {
	GetProfile(ctx context.Context, diverID uuid.UUID) (domain.DiverProfile, error)
}

// CreateOutcome says which of the three successful results Create produced.
type CreateOutcome string

const (
	OutcomeBooked     CreateOutcome = "booked"
	OutcomeWaitlisted CreateOutcome = "waitlisted"
	OutcomeIneligible CreateOutcome = "ineligible"
)

// CreateBookingInput is what a diver submits to book a trip.
type CreateBookingInput struct {
	NumberOfDivers  int
	NeedsEquipment  bool
	SpecialRequests string
}

// CreateResult carries exactly one of Booking, Entry or Eligibility
// depending on Outcome.
type CreateResult struct {
	Outcome     CreateOutcome
	Booking     *domain.Booking
	Entry       *domain.WaitlistEntry
	Eligibility *domain.Eligibility
}

// UpdateBookingInput holds the fields a diver may change before payment.
// Nil fields are left as they are.
type UpdateBookingInput struct {
	NumberOfDivers  *int
	NeedsEquipment  *bool
	SpecialRequests *string
}

// CancelResult reports what a cancellation did.
type CancelResult struct {
	Booking      domain.Booking
	RefundAmount float64
	Promoted     *domain.WaitlistEntry
}

// PaymentEvent is an outcome reported by the payment subsystem.
type PaymentEvent struct {
	BookingID uuid.UUID
	Status    domain.BookingStatus // paid, refunded or partially_refunded
	Reference string
	Amount    *float64
}

// BookingService runs the booking lifecycle. It is the only place that
// combines eligibility, capacity, pricing, refunds and the waitlist.
type BookingService struct {
	tx          repo.Transactor
	repos       repo.Repos
	profiles    ProfileProvider
	eligibility *EligibilityEvaluator
	pricing     *PricingEngine
	waitlist    *WaitlistManager
	authz       Authorizer
	notifier    Notifier
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a BookingService. repos is used for reads
// outside a transaction.
func NewBookingService(
	tx repo.Transactor,
	repos repo.Repos,
	profiles ProfileProvider,
	pricing *PricingEngine,
	waitlist *WaitlistManager,
	authz Authorizer,
	notifier Notifier,
	opts ...Option,
) *BookingService {
	o := buildOptions(opts)
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return &BookingService{
		tx:          tx,
		repos:       repos,
		profiles:    profiles,
		eligibility: NewEligibilityEvaluator(),
		pricing:     pricing,
		waitlist:    waitlist,
		authz:       authz,
		notifier:    notifier,
		now:         o.now,
		logger:      o.logger,
	}
}

// Create books seats on a trip for the acting diver.
//
// An ineligible diver or a full trip is not an error: the result's Outcome
// is OutcomeIneligible (with reasons) or OutcomeWaitlisted (with the queue
// entry). Returns domain.ErrConflict if the diver already holds an active
// booking on the trip, and domain.ErrValidation for bad input or a trip
// that is not open for booking.
func (s *BookingService) Create(ctx context.Context, actor domain.Actor, tripID uuid.UUID, in CreateBookingInput) (CreateResult, error) {
	if in.NumberOfDivers < 1 {
		return CreateResult{}, fmt.Errorf("%w: number of divers must be at least 1", domain.ErrValidation)
	}
	if err := authorize(ctx, s.authz, actor, CapBook, Resource{DiverID: actor.ID}); err != nil {
		return CreateResult{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	trip, err := s.repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}
	if !trip.AcceptsBookings() {
		return CreateResult{}, fmt.Errorf("%w: trip is %s and not taking bookings", domain.ErrValidation, trip.Status)
	}

	now := s.now()
	profile, err := s.profile(ctx, actor.ID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}
	elig := s.eligibility.Evaluate(profile, trip.Eligibility, now)
	if !elig.Eligible {
		s.logger.InfoContext(ctx, "booking rejected: not eligible",
			"trip_id", tripID, "diver_id", actor.ID, "reasons", elig.Reasons)
		return CreateResult{Outcome: OutcomeIneligible, Eligibility: &elig}, nil
	}

	price, err := s.pricing.Quote(ctx, trip, in.NumberOfDivers, in.NeedsEquipment)
	if err != nil {
		return CreateResult{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	var result CreateResult
	err = s.tx.WithinTx(ctx, func(r repo.Repos) error {
		locked, err := r.Trips.LockForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !locked.AcceptsBookings() {
			return fmt.Errorf("%w: trip is %s and not taking bookings", domain.ErrValidation, locked.Status)
		}
		if _, err := r.Bookings.GetActive(ctx, tripID, actor.ID); err == nil {
			return fmt.Errorf("%w: diver already has an active booking on this trip", domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		_, ok, err := NewCapacityLedger(r.Trips).TryReserve(ctx, tripID, in.NumberOfDivers)
		if err != nil {
			return err
		}
		if !ok {
			entry, err := s.waitlist.join(ctx, r, tripID, actor.ID)
			if err != nil {
				return err
			}
			result = CreateResult{Outcome: OutcomeWaitlisted, Entry: &entry}
			return nil
		}

		b, err := r.Bookings.Create(ctx, domain.Booking{
			TripID:                tripID,
			DiverID:               actor.ID,
			Status:                domain.BookingStatusPending,
			NumberOfDivers:        in.NumberOfDivers,
			NeedsEquipment:        in.NeedsEquipment,
			SpecialRequests:       strings.TrimSpace(in.SpecialRequests),
			Price:                 price,
			ParentConsentRequired: profile != nil && profile.IsMinorAt(now),
		})
		if err != nil {
			return err
		}
		if err := r.Waitlist.Remove(ctx, tripID, actor.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		result = CreateResult{Outcome: OutcomeBooked, Booking: &b}
		return nil
	})
	if err != nil {
		return CreateResult{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	switch result.Outcome {
	case OutcomeBooked:
		s.logger.InfoContext(ctx, "booking created",
			"booking_id", result.Booking.ID, "trip_id", tripID, "diver_id", actor.ID,
			"divers", in.NumberOfDivers, "total", result.Booking.Price.Total)
	case OutcomeWaitlisted:
		s.logger.InfoContext(ctx, "trip full, diver waitlisted",
			"trip_id", tripID, "diver_id", actor.ID, "position", result.Entry.Position)
	}
	return result, nil
}

// Cancel cancels a booking, records the refund owed and frees its seats.
// A paid booking's refund is written to the refund outbox in the same
// transaction. The head of the waitlist is then offered a seat.
// Returns domain.ErrValidation if the booking can no longer be cancelled.
func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, reason string) (CancelResult, error) {
	var (
		result CancelResult
		trip   domain.Trip
	)
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		b, err := r.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		trip, err = r.Trips.LockForUpdate(ctx, b.TripID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.authz, actor, CapAccessBooking, Resource{Trip: &trip, Booking: &b}); err != nil {
			return err
		}
		if b.Status.Terminal() {
			return fmt.Errorf("%w: booking is already %s", domain.ErrValidation, b.Status)
		}
		if !b.Status.CanTransitionTo(domain.BookingStatusCancelled) {
			return fmt.Errorf("%w: a %s booking cannot be cancelled", domain.ErrValidation, b.Status)
		}

		now := s.now()
		refund := 0.0
		if balance := b.PaidBalance(); balance > 0 {
			refund = CalculateRefund(balance, trip, now)
		}
		b, err = cancelBooking(ctx, r, b, actor.ID, reason, refund, now)
		if err != nil {
			return err
		}

		trip, err = NewCapacityLedger(r.Trips).Release(ctx, b.TripID, b.NumberOfDivers)
		if err != nil {
			return err
		}
		promoted, err := s.waitlist.promoteNext(ctx, r, trip)
		if err != nil {
			return err
		}
		result = CancelResult{Booking: b, RefundAmount: refund, Promoted: promoted}
		return nil
	})
	if err != nil {
		return CancelResult{}, fmt.Errorf("service.BookingService.Cancel: %w", err)
	}

	s.logger.InfoContext(ctx, "booking cancelled",
		"booking_id", bookingID, "trip_id", trip.ID, "refund", result.RefundAmount)
	s.notifyCancelled(ctx, trip, result.Booking, domain.NotificationBookingCancelled)
	s.waitlist.announce(ctx, trip, result.Promoted)
	return result, nil
}

// Update changes the diver count, equipment flag or special requests of a
// pending or confirmed booking and re-prices it. Extra divers need free
// seats; fewer divers release seats to the waitlist.
func (s *BookingService) Update(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, in UpdateBookingInput) (domain.Booking, error) {
	if in.NumberOfDivers != nil && *in.NumberOfDivers < 1 {
		return domain.Booking{}, fmt.Errorf("%w: number of divers must be at least 1", domain.ErrValidation)
	}

	var (
		updated  domain.Booking
		trip     domain.Trip
		promoted *domain.WaitlistEntry
	)
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		b, err := r.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		trip, err = r.Trips.LockForUpdate(ctx, b.TripID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.authz, actor, CapAccessBooking, Resource{Trip: &trip, Booking: &b}); err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusConfirmed {
			return fmt.Errorf("%w: a %s booking cannot be changed", domain.ErrValidation, b.Status)
		}

		ledger := NewCapacityLedger(r.Trips)
		if in.NumberOfDivers != nil {
			delta := *in.NumberOfDivers - b.NumberOfDivers
			switch {
			case delta > 0:
				t, ok, err := ledger.TryReserve(ctx, trip.ID, delta)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: only %d seats left on this trip", domain.ErrConflict, t.AvailableSeats())
				}
				trip = t
			case delta < 0:
				if trip, err = ledger.Release(ctx, trip.ID, -delta); err != nil {
					return err
				}
				if promoted, err = s.waitlist.promoteNext(ctx, r, trip); err != nil {
					return err
				}
			}
			b.NumberOfDivers = *in.NumberOfDivers
		}
		if in.NeedsEquipment != nil {
			b.NeedsEquipment = *in.NeedsEquipment
		}
		if in.SpecialRequests != nil {
			b.SpecialRequests = strings.TrimSpace(*in.SpecialRequests)
		}

		if b.Price, err = s.pricing.Quote(ctx, trip, b.NumberOfDivers, b.NeedsEquipment); err != nil {
			return err
		}
		updated, err = r.Bookings.Update(ctx, b)
		return err
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Update: %w", err)
	}

	s.logger.InfoContext(ctx, "booking updated",
		"booking_id", bookingID, "divers", updated.NumberOfDivers, "total", updated.Price.Total)
	s.waitlist.announce(ctx, trip, promoted)
	return updated, nil
}

// Confirm accepts a pending booking. A minor's booking needs parent consent
// first.
func (s *BookingService) Confirm(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error) {
	return s.transition(ctx, actor, bookingID, CapOperateBooking, "Confirm", func(b *domain.Booking, _ domain.Trip, _ time.Time) error {
		if err := requireTransition(b, domain.BookingStatusConfirmed); err != nil {
			return err
		}
		if b.NeedsParentConsent() {
			return fmt.Errorf("%w: parent consent is required before confirming", domain.ErrValidation)
		}
		b.Status = domain.BookingStatusConfirmed
		return nil
	})
}

// GiveParentConsent records a guardian's consent on a minor's booking.
func (s *BookingService) GiveParentConsent(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error) {
	return s.transition(ctx, actor, bookingID, CapAccessBooking, "GiveParentConsent", func(b *domain.Booking, _ domain.Trip, now time.Time) error {
		if b.Status.Terminal() {
			return fmt.Errorf("%w: booking is already %s", domain.ErrValidation, b.Status)
		}
		if !b.ParentConsentRequired {
			return fmt.Errorf("%w: booking does not need parent consent", domain.ErrValidation)
		}
		if b.ParentConsentGivenAt == nil {
			b.ParentConsentGivenAt = &now
		}
		return nil
	})
}

// SignWaiver records that the diver signed the liability waiver.
func (s *BookingService) SignWaiver(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error) {
	return s.transition(ctx, actor, bookingID, CapAccessBooking, "SignWaiver", func(b *domain.Booking, _ domain.Trip, now time.Time) error {
		if b.Status.Terminal() {
			return fmt.Errorf("%w: booking is already %s", domain.ErrValidation, b.Status)
		}
		if b.WaiverSignedAt == nil {
			b.WaiverSignedAt = &now
		}
		return nil
	})
}

// CheckIn marks a paid booking as present on the day. The waiver must be
// signed, and a minor needs parent consent.
func (s *BookingService) CheckIn(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error) {
	return s.transition(ctx, actor, bookingID, CapOperateBooking, "CheckIn", func(b *domain.Booking, _ domain.Trip, now time.Time) error {
		if err := requireTransition(b, domain.BookingStatusCheckedIn); err != nil {
			return err
		}
		if b.WaiverSignedAt == nil {
			return fmt.Errorf("%w: waiver must be signed before check-in", domain.ErrValidation)
		}
		if b.NeedsParentConsent() {
			return fmt.Errorf("%w: parent consent is required before check-in", domain.ErrValidation)
		}
		b.Status = domain.BookingStatusCheckedIn
		b.CheckedInAt = &now
		return nil
	})
}

// Complete closes a checked-in booking after the dive.
func (s *BookingService) Complete(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error) {
	return s.transition(ctx, actor, bookingID, CapOperateBooking, "Complete", func(b *domain.Booking, _ domain.Trip, _ time.Time) error {
		if err := requireTransition(b, domain.BookingStatusCompleted); err != nil {
			return err
		}
		b.Status = domain.BookingStatusCompleted
		return nil
	})
}

// RecordPaymentEvent applies an outcome from the payment subsystem: paid,
// refunded or partially_refunded. A full refund frees the booking's seats.
func (s *BookingService) RecordPaymentEvent(ctx context.Context, actor domain.Actor, ev PaymentEvent) (domain.Booking, error) {
	switch ev.Status {
	case domain.BookingStatusPaid, domain.BookingStatusRefunded, domain.BookingStatusPartiallyRefunded:
	default:
		return domain.Booking{}, fmt.Errorf("%w: unsupported payment status %q", domain.ErrValidation, ev.Status)
	}
	if ev.Amount != nil && *ev.Amount < 0 {
		return domain.Booking{}, fmt.Errorf("%w: amount must not be negative", domain.ErrValidation)
	}

	var (
		updated  domain.Booking
		trip     domain.Trip
		promoted *domain.WaitlistEntry
	)
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		b, err := r.Bookings.GetByID(ctx, ev.BookingID)
		if err != nil {
			return err
		}
		trip, err = r.Trips.LockForUpdate(ctx, b.TripID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.authz, actor, CapRecordPayment, Resource{Trip: &trip, Booking: &b}); err != nil {
			return err
		}
		if err := requireTransition(&b, ev.Status); err != nil {
			return err
		}

		b.Status = ev.Status
		switch ev.Status {
		case domain.BookingStatusPaid:
			b.PaymentReference = ev.Reference
		case domain.BookingStatusRefunded:
			amount := b.Price.Total
			b.RefundAmount = &amount
		case domain.BookingStatusPartiallyRefunded:
			if ev.Amount == nil {
				return fmt.Errorf("%w: partial refund needs an amount", domain.ErrValidation)
			}
			amount := domain.Round2(*ev.Amount)
			if amount > b.Price.Total {
				return fmt.Errorf("%w: partial refund exceeds the booking total", domain.ErrValidation)
			}
			b.RefundAmount = &amount
		}
		if updated, err = r.Bookings.Update(ctx, b); err != nil {
			return err
		}

		if ev.Status == domain.BookingStatusRefunded {
			if trip, err = NewCapacityLedger(r.Trips).Release(ctx, b.TripID, b.NumberOfDivers); err != nil {
				return err
			}
			promoted, err = s.waitlist.promoteNext(ctx, r, trip)
		}
		return err
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.RecordPaymentEvent: %w", err)
	}

	s.logger.InfoContext(ctx, "payment event recorded",
		"booking_id", ev.BookingID, "status", ev.Status, "reference", ev.Reference)
	s.waitlist.announce(ctx, trip, promoted)
	return updated, nil
}

// Get returns a booking visible to the actor.
func (s *BookingService) Get(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (domain.Booking, error) {
	b, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Get: %w", err)
	}
	trip, err := s.repos.Trips.GetByID(ctx, b.TripID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Get: %w", err)
	}
	if err := authorize(ctx, s.authz, actor, CapAccessBooking, Resource{Trip: &trip, Booking: &b}); err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Get: %w", err)
	}
	return b, nil
}

// ListByTrip returns one page of a trip's bookings for its owner.
func (s *BookingService) ListByTrip(ctx context.Context, actor domain.Actor, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	trip, err := s.repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, 0, fmt.Errorf("service.BookingService.ListByTrip: %w", err)
	}
	if err := authorize(ctx, s.authz, actor, CapViewTripBookings, Resource{Trip: &trip}); err != nil {
		return nil, 0, fmt.Errorf("service.BookingService.ListByTrip: %w", err)
	}
	bookings, total, err := s.repos.Bookings.ListByTrip(ctx, tripID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.BookingService.ListByTrip: %w", err)
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	return bookings, total, nil
}

// ListMine returns every booking of the acting diver, newest first.
// Always returns a non-nil slice.
func (s *BookingService) ListMine(ctx context.Context, actor domain.Actor) ([]domain.Booking, error) {
	bookings, err := s.repos.Bookings.ListByDiver(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.ListMine: %w", err)
	}
	if bookings == nil {
		return []domain.Booking{}, nil
	}
	return bookings, nil
}

// CalculatePrice quotes n divers on a trip without booking anything.
func (s *BookingService) CalculatePrice(ctx context.Context, tripID uuid.UUID, n int, needsEquipment bool) (domain.PriceBreakdown, error) {
	trip, err := s.repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.PriceBreakdown{}, fmt.Errorf("service.BookingService.CalculatePrice: %w", err)
	}
	price, err := s.pricing.Quote(ctx, trip, n, needsEquipment)
	if err != nil {
		return domain.PriceBreakdown{}, fmt.Errorf("service.BookingService.CalculatePrice: %w", err)
	}
	return price, nil
}

// CheckEligibility evaluates diverID against the trip's policy now.
func (s *BookingService) CheckEligibility(ctx context.Context, tripID, diverID uuid.UUID) (domain.Eligibility, error) {
	trip, err := s.repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.Eligibility{}, fmt.Errorf("service.BookingService.CheckEligibility: %w", err)
	}
	profile, err := s.profile(ctx, diverID)
	if err != nil {
		return domain.Eligibility{}, fmt.Errorf("service.BookingService.CheckEligibility: %w", err)
	}
	return s.eligibility.Evaluate(profile, trip.Eligibility, s.now()), nil
}

// profile returns nil when the diver has no profile on file.
func (s *BookingService) profile(ctx context.Context, diverID uuid.UUID) (*domain.DiverProfile, error) {
	p, err := s.profiles.GetProfile(ctx, diverID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// transition loads a booking and its trip in a transaction, checks c, applies
// fn and saves the result.
func (s *BookingService) transition(
	ctx context.Context,
	actor domain.Actor,
	bookingID uuid.UUID,
	c Capability,
	op string,
	fn func(b *domain.Booking, trip domain.Trip, now time.Time) error,
) (domain.Booking, error) {
	var updated domain.Booking
	err := s.tx.WithinTx(ctx, func(r repo.Repos) error {
		b, err := r.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		trip, err := r.Trips.GetByID(ctx, b.TripID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, s.authz, actor, c, Resource{Trip: &trip, Booking: &b}); err != nil {
			return err
		}
		if err := fn(&b, trip, s.now()); err != nil {
			return err
		}
		updated, err = r.Bookings.Update(ctx, b)
		return err
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.%s: %w", op, err)
	}
	s.logger.InfoContext(ctx, "booking "+strings.ToLower(op),
		"booking_id", bookingID, "status", updated.Status)
	return updated, nil
}

// notifyCancelled tells the diver their booking was cancelled.
func (s *BookingService) notifyCancelled(ctx context.Context, trip domain.Trip, b domain.Booking, kind domain.NotificationKind) {
	id := b.ID
	s.notifier.Notify(ctx, domain.Notification{
		Kind:         kind,
		DiverID:      b.DiverID,
		TripID:       trip.ID,
		BookingID:    &id,
		TripTitle:    trip.Title,
		RefundAmount: b.RefundAmount,
	})
}

// requireTransition rejects lifecycle moves the state machine does not allow.
func requireTransition(b *domain.Booking, next domain.BookingStatus) error {
	if b.Status.Terminal() {
		return fmt.Errorf("%w: booking is already %s", domain.ErrValidation, b.Status)
	}
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot move booking from %s to %s", domain.ErrValidation, b.Status, next)
	}
	return nil
}

// cancelBooking marks b cancelled and, when money is owed back, queues the
// refund in the outbox. RefundAmount ends up as everything handed back,
// earlier partial refunds included. It runs inside the caller's transaction.
func cancelBooking(ctx context.Context, r repo.Repos, b domain.Booking, by uuid.UUID, reason string, refund float64, now time.Time) (domain.Booking, error) {
	total := refund
	if b.Status == domain.BookingStatusPartiallyRefunded && b.RefundAmount != nil {
		total = domain.Round2(*b.RefundAmount + refund)
	}
	b.Status = domain.BookingStatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = &by
	b.CancellationReason = strings.TrimSpace(reason)
	b.RefundAmount = &total

	updated, err := r.Bookings.Update(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}
	if refund > 0 {
		if _, err := r.Refunds.Enqueue(ctx, domain.RefundRequest{
			BookingID: b.ID,
			Amount:    refund,
			Reason:    b.CancellationReason,
		}); err != nil {
			return domain.Booking{}, err
		}
	}
	return updated, nil
}
