package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

type tripRepo struct {
	h handle
}

func (r *tripRepo) Create(_ context.Context, t domain.Trip) (domain.Trip, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	t.ID = uuid.New()
	t.CurrentParticipants = 0
	if t.Status == "" {
		t.Status = domain.TripStatusDraft
	}
	now := r.h.store.stamp()
	t.CreatedAt, t.UpdatedAt = now, now
	st.trips[t.ID] = t
	return t, nil
}

func (r *tripRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	st, unlock := r.h.acquire()
	defer unlock()
	return getTrip(st, id, "GetByID")
}

func (r *tripRepo) LockForUpdate(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	// Transactions already run one at a time.
	st, unlock := r.h.acquire()
	defer unlock()
	return getTrip(st, id, "LockForUpdate")
}

func (r *tripRepo) ListPaged(_ context.Context, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	all := make([]domain.Trip, 0, len(st.trips))
	for _, t := range st.trips {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].DepartureTime.Equal(all[j].DepartureTime) {
			return all[i].DepartureTime.Before(all[j].DepartureTime)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return paginate(all, p), int64(len(all)), nil
}

func (r *tripRepo) Update(_ context.Context, t domain.Trip) (domain.Trip, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	cur, err := getTrip(st, t.ID, "Update")
	if err != nil {
		return domain.Trip{}, err
	}
	if t.MaxParticipants < cur.CurrentParticipants {
		return domain.Trip{}, fmt.Errorf("memory.TripRepo.Update: %w: max_participants below current_participants", domain.ErrValidation)
	}
	cur.SiteID = t.SiteID
	cur.Title = t.Title
	cur.DepartureTime = t.DepartureTime
	cur.MaxParticipants = t.MaxParticipants
	cur.Eligibility = t.Eligibility
	cur.PricePerPerson = t.PricePerPerson
	cur.EquipmentRentalPrice = t.EquipmentRentalPrice
	cur.ConservationFeeIncluded = t.ConservationFeeIncluded
	cur.CancellationDeadlineHours = t.CancellationDeadlineHours
	cur.UpdatedAt = r.h.store.stamp()
	st.trips[cur.ID] = cur
	return cur, nil
}

func (r *tripRepo) SetStatus(_ context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	t, err := getTrip(st, id, "SetStatus")
	if err != nil {
		return domain.Trip{}, err
	}
	t.Status = status
	t.UpdatedAt = r.h.store.stamp()
	st.trips[id] = t
	return t, nil
}

func (r *tripRepo) Reserve(_ context.Context, id uuid.UUID, n int) (domain.Trip, bool, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	t, err := getTrip(st, id, "Reserve")
	if err != nil {
		return domain.Trip{}, false, err
	}
	if t.CurrentParticipants+n > t.MaxParticipants {
		return t, false, nil
	}
	t.CurrentParticipants += n
	t.Status = t.RecomputedStatus()
	t.UpdatedAt = r.h.store.stamp()
	st.trips[id] = t
	return t, true, nil
}

func (r *tripRepo) Release(_ context.Context, id uuid.UUID, n int) (domain.Trip, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	t, err := getTrip(st, id, "Release")
	if err != nil {
		return domain.Trip{}, err
	}
	t.CurrentParticipants -= n
	if t.CurrentParticipants < 0 {
		t.CurrentParticipants = 0
	}
	t.Status = t.RecomputedStatus()
	t.UpdatedAt = r.h.store.stamp()
	st.trips[id] = t
	return t, nil
}

func (r *tripRepo) Recompute(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	t, err := getTrip(st, id, "Recompute")
	if err != nil {
		return domain.Trip{}, err
	}
	t.Status = t.RecomputedStatus()
	st.trips[id] = t
	return t, nil
}

func getTrip(st *state, id uuid.UUID, op string) (domain.Trip, error) {
	t, ok := st.trips[id]
	if !ok {
		return domain.Trip{}, fmt.Errorf("memory.TripRepo.%s: %w", op, domain.ErrNotFound)
	}
	return t, nil
}

// paginate slices one page out of items.
func paginate[T any](items []T, p domain.PaginationParams) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
