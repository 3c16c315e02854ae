package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

type bookingRepo struct {
	h handle
}

func (r *bookingRepo) Create(_ context.Context, b domain.Booking) (domain.Booking, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	if _, ok := activeBooking(st, b.TripID, b.DiverID); ok && b.Status.Active() {
		return domain.Booking{}, fmt.Errorf("memory.BookingRepo.Create: %w: bookings_active_trip_diver_idx", domain.ErrConflict)
	}
	b.ID = uuid.New()
	now := r.h.store.stamp()
	b.CreatedAt, b.UpdatedAt = now, now
	st.bookings[b.ID] = b
	return b, nil
}

func (r *bookingRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	b, ok := st.bookings[id]
	if !ok {
		return domain.Booking{}, fmt.Errorf("memory.BookingRepo.GetByID: %w", domain.ErrNotFound)
	}
	return b, nil
}

func (r *bookingRepo) GetActive(_ context.Context, tripID, diverID uuid.UUID) (domain.Booking, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	b, ok := activeBooking(st, tripID, diverID)
	if !ok {
		return domain.Booking{}, fmt.Errorf("memory.BookingRepo.GetActive: %w", domain.ErrNotFound)
	}
	return b, nil
}

func (r *bookingRepo) ListByTrip(_ context.Context, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	var out []domain.Booking
	for _, b := range st.bookings {
		if b.TripID == tripID {
			out = append(out, b)
		}
	}
	sortBookings(out, true)
	return paginate(out, p), int64(len(out)), nil
}

func (r *bookingRepo) ListByDiver(_ context.Context, diverID uuid.UUID) ([]domain.Booking, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	var out []domain.Booking
	for _, b := range st.bookings {
		if b.DiverID == diverID {
			out = append(out, b)
		}
	}
	sortBookings(out, false)
	return out, nil
}

func (r *bookingRepo) Update(_ context.Context, b domain.Booking) (domain.Booking, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	cur, ok := st.bookings[b.ID]
	if !ok {
		return domain.Booking{}, fmt.Errorf("memory.BookingRepo.Update: %w", domain.ErrNotFound)
	}
	b.TripID, b.DiverID, b.CreatedAt = cur.TripID, cur.DiverID, cur.CreatedAt
	b.UpdatedAt = r.h.store.stamp()
	st.bookings[b.ID] = b
	return b, nil
}

func activeBooking(st *state, tripID, diverID uuid.UUID) (domain.Booking, bool) {
	for _, b := range st.bookings {
		if b.TripID == tripID && b.DiverID == diverID && b.Status.Active() {
			return b, true
		}
	}
	return domain.Booking{}, false
}

func sortBookings(bs []domain.Booking, oldestFirst bool) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			if oldestFirst {
				return bs[i].CreatedAt.Before(bs[j].CreatedAt)
			}
			return bs[i].CreatedAt.After(bs[j].CreatedAt)
		}
		return bs[i].ID.String() < bs[j].ID.String()
	})
}

type refundRepo struct {
	h handle
}

func (r *refundRepo) Enqueue(_ context.Context, req domain.RefundRequest) (domain.RefundRequest, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	req.ID = uuid.New()
	req.CreatedAt = r.h.store.stamp()
	st.refunds = append(st.refunds, req)
	return req, nil
}

func (r *refundRepo) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]domain.RefundRequest, error) {
	st, unlock := r.h.acquire()
	defer unlock()

	var out []domain.RefundRequest
	for _, req := range st.refunds {
		if req.BookingID == bookingID {
			out = append(out, req)
		}
	}
	return out, nil
}
