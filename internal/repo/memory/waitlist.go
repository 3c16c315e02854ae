package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

type waitlistRepo struct {
	h handle
}

func (r *waitlistRepo) Append(_ context.Context, tripID, diverID uuid.UUID) (domain.WaitlistEntry, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	queue := queueOf(st, tripID)
	for _, e := range queue {
		if e.DiverID == diverID {
			return domain.WaitlistEntry{}, fmt.Errorf("memory.WaitlistRepo.Append: %w: waitlist_entries_trip_id_diver_id_key", domain.ErrConflict)
		}
	}
	e := domain.WaitlistEntry{
		ID:        uuid.New(),
		TripID:    tripID,
		DiverID:   diverID,
		Position:  len(queue) + 1,
		CreatedAt: r.h.store.stamp(),
	}
	st.waitlist[e.ID] = e
	return e, nil
}

func (r *waitlistRepo) Get(_ context.Context, tripID, diverID uuid.UUID) (domain.WaitlistEntry, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	for _, e := range queueOf(st, tripID) {
		if e.DiverID == diverID {
			return e, nil
		}
	}
	return domain.WaitlistEntry{}, fmt.Errorf("memory.WaitlistRepo.Get: %w", domain.ErrNotFound)
}

func (r *waitlistRepo) Head(_ context.Context, tripID uuid.UUID) (domain.WaitlistEntry, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	queue := queueOf(st, tripID)
	if len(queue) == 0 {
		return domain.WaitlistEntry{}, fmt.Errorf("memory.WaitlistRepo.Head: %w", domain.ErrNotFound)
	}
	return queue[0], nil
}

func (r *waitlistRepo) ListByTrip(_ context.Context, tripID uuid.UUID) ([]domain.WaitlistEntry, error) {
	st, unlock := r.h.acquire()
	defer unlock()
	return queueOf(st, tripID), nil
}

func (r *waitlistRepo) Remove(_ context.Context, tripID, diverID uuid.UUID) error {
	st, unlock := r.h.acquire()
	defer unlock()

	queue := queueOf(st, tripID)
	found := false
	pos := 1
	for _, e := range queue {
		if e.DiverID == diverID {
			delete(st.waitlist, e.ID)
			found = true
			continue
		}
		e.Position = pos
		st.waitlist[e.ID] = e
		pos++
	}
	if !found {
		return fmt.Errorf("memory.WaitlistRepo.Remove: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *waitlistRepo) MarkNotified(_ context.Context, id uuid.UUID, notifiedAt, expiresAt time.Time) (domain.WaitlistEntry, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	e, ok := st.waitlist[id]
	if !ok {
		return domain.WaitlistEntry{}, fmt.Errorf("memory.WaitlistRepo.MarkNotified: %w", domain.ErrNotFound)
	}
	e.NotifiedAt = &notifiedAt
	e.ExpiresAt = &expiresAt
	st.waitlist[id] = e
	return e, nil
}

func (r *waitlistRepo) ExpiredHeads(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	var heads []domain.WaitlistEntry
	for _, e := range st.waitlist {
		if e.Position == 1 && e.Expired(now) {
			heads = append(heads, e)
		}
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].ExpiresAt.Before(*heads[j].ExpiresAt) })

	ids := make([]uuid.UUID, 0, len(heads))
	for _, e := range heads {
		ids = append(ids, e.TripID)
	}
	return ids, nil
}

// queueOf returns a trip's entries ordered by position.
func queueOf(st *state, tripID uuid.UUID) []domain.WaitlistEntry {
	var q []domain.WaitlistEntry
	for _, e := range st.waitlist {
		if e.TripID == tripID {
			q = append(q, e)
		}
	}
	sort.Slice(q, func(i, j int) bool { return q[i].Position < q[j].Position })
	return q
}
