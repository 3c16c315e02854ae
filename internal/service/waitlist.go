package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
)

// DefaultPromotionWindow is how long a promoted diver has to book.
const DefaultPromotionWindow = 24 * time.Hour

// WaitlistManager owns the per-trip FIFO queues. Every mutation first takes
// the trip's row lock inside a transaction, so joins, leaves and promotions
// on one trip never interleave and positions stay dense.
type WaitlistManager struct {
	tx       repo.Transactor
	repos    repo.Repos
	authz    Authorizer
	notifier Notifier
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewWaitlistManager constructs a WaitlistManager. repos is used for reads
// outside a transaction. A nil notifier drops notifications.
func NewWaitlistManager(tx repo.Transactor, repos repo.Repos, authz Authorizer, notifier Notifier, window time.Duration, opts ...Option) *WaitlistManager {
	o := buildOptions(opts)
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if window <= 0 {
		window = DefaultPromotionWindow
	}
	return &WaitlistManager{
		tx:       tx,
		repos:    repos,
		authz:    authz,
		notifier: notifier,
		window:   window,
		now:      o.now,
		logger:   o.logger,
	}
}

// Join puts the acting diver at the back of the trip's queue.
// Returns domain.ErrConflict if the diver is already queued or already holds
// an active booking, and domain.ErrValidation if the trip is not bookable.
func (m *WaitlistManager) Join(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error) {
	if err := authorize(ctx, m.authz, actor, CapBook, Resource{DiverID: actor.ID}); err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("service.WaitlistManager.Join: %w", err)
	}

	var entry domain.WaitlistEntry
	err := m.tx.WithinTx(ctx, func(r repo.Repos) error {
		trip, err := r.Trips.LockForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.AcceptsBookings() {
			return fmt.Errorf("%w: trip is %s and not taking bookings", domain.ErrValidation, trip.Status)
		}
		if _, err := r.Bookings.GetActive(ctx, tripID, actor.ID); err == nil {
			return fmt.Errorf("%w: diver already has an active booking on this trip", domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		entry, err = m.join(ctx, r, tripID, actor.ID)
		return err
	})
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("service.WaitlistManager.Join: %w", err)
	}

	m.logger.InfoContext(ctx, "waitlist joined",
		"trip_id", tripID, "diver_id", actor.ID, "position", entry.Position)
	return entry, nil
}

// Leave removes diverID from the trip's queue and closes the gap.
// If the leaving diver held the promotion, the next diver is promoted.
func (m *WaitlistManager) Leave(ctx context.Context, actor domain.Actor, tripID, diverID uuid.UUID) error {
	var promoted *domain.WaitlistEntry
	var trip domain.Trip
	err := m.tx.WithinTx(ctx, func(r repo.Repos) error {
		var err error
		trip, err = r.Trips.LockForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, m.authz, actor, CapLeaveWaitlist, Resource{Trip: &trip, DiverID: diverID}); err != nil {
			return err
		}
		entry, err := r.Waitlist.Get(ctx, tripID, diverID)
		if err != nil {
			return err
		}
		if err := r.Waitlist.Remove(ctx, tripID, diverID); err != nil {
			return err
		}
		if entry.Position == 1 && entry.Promoted() {
			promoted, err = m.promoteNext(ctx, r, trip)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("service.WaitlistManager.Leave: %w", err)
	}

	m.logger.InfoContext(ctx, "waitlist left", "trip_id", tripID, "diver_id", diverID)
	m.announce(ctx, trip, promoted)
	return nil
}

// List returns the trip's queue in order. Trip owners and admins only.
func (m *WaitlistManager) List(ctx context.Context, actor domain.Actor, tripID uuid.UUID) ([]domain.WaitlistEntry, error) {
	trip, err := m.repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.WaitlistManager.List: %w", err)
	}
	if err := authorize(ctx, m.authz, actor, CapViewWaitlist, Resource{Trip: &trip}); err != nil {
		return nil, fmt.Errorf("service.WaitlistManager.List: %w", err)
	}
	entries, err := m.repos.Waitlist.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.WaitlistManager.List: %w", err)
	}
	if entries == nil {
		return []domain.WaitlistEntry{}, nil
	}
	return entries, nil
}

// Get returns the acting diver's own entry on the trip.
func (m *WaitlistManager) Get(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.WaitlistEntry, error) {
	entry, err := m.repos.Waitlist.Get(ctx, tripID, actor.ID)
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("service.WaitlistManager.Get: %w", err)
	}
	return entry, nil
}

// PromoteNext offers a freed seat to the head of the trip's queue, if any.
// It is safe to call at any time: an unexpired promotion is left alone and
// a trip with no free seat promotes nobody.
func (m *WaitlistManager) PromoteNext(ctx context.Context, tripID uuid.UUID) (*domain.WaitlistEntry, error) {
	var promoted *domain.WaitlistEntry
	var trip domain.Trip
	err := m.tx.WithinTx(ctx, func(r repo.Repos) error {
		var err error
		trip, err = r.Trips.LockForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		promoted, err = m.promoteNext(ctx, r, trip)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service.WaitlistManager.PromoteNext: %w", err)
	}
	m.announce(ctx, trip, promoted)
	return promoted, nil
}

// SweepExpired promotes the next diver on every trip whose head's promotion
// window has passed. Failures on one trip do not stop the others.
// It returns how many divers were promoted.
func (m *WaitlistManager) SweepExpired(ctx context.Context) (int, error) {
	tripIDs, err := m.repos.Waitlist.ExpiredHeads(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("service.WaitlistManager.SweepExpired: %w", err)
	}

	var (
		promoted int
		errs     []error
	)
	for _, id := range tripIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		entry, err := m.PromoteNext(ctx, id)
		if err != nil {
			m.logger.ErrorContext(ctx, "waitlist sweep failed", "trip_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		if entry != nil {
			promoted++
		}
	}
	if err := errors.Join(errs...); err != nil {
		return promoted, fmt.Errorf("service.WaitlistManager.SweepExpired: %w", err)
	}
	return promoted, nil
}

// join appends diverID to the queue. The caller holds the trip lock.
func (m *WaitlistManager) join(ctx context.Context, r repo.Repos, tripID, diverID uuid.UUID) (domain.WaitlistEntry, error) {
	entry, err := r.Waitlist.Append(ctx, tripID, diverID)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.WaitlistEntry{}, fmt.Errorf("%w: diver is already on the waitlist", domain.ErrConflict)
		}
		return domain.WaitlistEntry{}, err
	}
	return entry, nil
}

// promoteNext drops expired heads, then stamps the new head with a
// promotion window. The caller holds the lock on trip and passes its
// current state. Returns nil when nobody was promoted.
func (m *WaitlistManager) promoteNext(ctx context.Context, r repo.Repos, trip domain.Trip) (*domain.WaitlistEntry, error) {
	now := m.now()
	for {
		head, err := r.Waitlist.Head(ctx, trip.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if head.Expired(now) {
			if err := r.Waitlist.Remove(ctx, trip.ID, head.DiverID); err != nil {
				return nil, err
			}
			m.logger.InfoContext(ctx, "waitlist promotion expired",
				"trip_id", trip.ID, "diver_id", head.DiverID)
			continue
		}
		if head.Promoted() || trip.AvailableSeats() == 0 || !trip.AcceptsBookings() {
			return nil, nil
		}

		entry, err := r.Waitlist.MarkNotified(ctx, head.ID, now, now.Add(m.window))
		if err != nil {
			return nil, err
		}
		m.logger.InfoContext(ctx, "waitlist head promoted",
			"trip_id", trip.ID, "diver_id", entry.DiverID, "expires_at", entry.ExpiresAt)
		return &entry, nil
	}
}

// announce tells a promoted diver about their seat. Called after commit.
func (m *WaitlistManager) announce(ctx context.Context, trip domain.Trip, promoted *domain.WaitlistEntry) {
	if promoted == nil {
		return
	}
	m.notifier.Notify(ctx, domain.Notification{
		Kind:      domain.NotificationWaitlistSpotAvailable,
		DiverID:   promoted.DiverID,
		TripID:    trip.ID,
		TripTitle: trip.Title,
		ExpiresAt: promoted.ExpiresAt,
	})
}
