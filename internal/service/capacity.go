package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
)

// CapacityLedger guards a trip's participant counters. Every change is a
// single conditional update in the repo, never a read followed by a write.
// Bind it to the TripRepo of the transaction the change belongs to.
type CapacityLedger struct {
	trips repo.TripRepo
}

// NewCapacityLedger returns a CapacityLedger over trips.
func NewCapacityLedger(trips repo.TripRepo) CapacityLedger {
	return CapacityLedger{trips: trips}
}

// TryReserve takes n seats if they are all free, flipping the trip to full
// when the last seat goes. ok is false and nothing changes otherwise.
func (l CapacityLedger) TryReserve(ctx context.Context, tripID uuid.UUID, n int) (domain.Trip, bool, error) {
	if n < 1 {
		return domain.Trip{}, false, fmt.Errorf("%w: seats to reserve must be at least 1", domain.ErrValidation)
	}
	trip, ok, err := l.trips.Reserve(ctx, tripID, n)
	if err != nil {
		return domain.Trip{}, false, fmt.Errorf("service.CapacityLedger.TryReserve: %w", err)
	}
	return trip, ok, nil
}

// Release frees n seats, never going below zero, and reopens a full trip.
func (l CapacityLedger) Release(ctx context.Context, tripID uuid.UUID, n int) (domain.Trip, error) {
	if n < 1 {
		return domain.Trip{}, fmt.Errorf("%w: seats to release must be at least 1", domain.ErrValidation)
	}
	trip, err := l.trips.Release(ctx, tripID, n)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.CapacityLedger.Release: %w", err)
	}
	return trip, nil
}

// Recompute re-derives published/full from the counters.
func (l CapacityLedger) Recompute(ctx context.Context, tripID uuid.UUID) (domain.Trip, error) {
	trip, err := l.trips.Recompute(ctx, tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.CapacityLedger.Recompute: %w", err)
	}
	return trip, nil
}
