package domain

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is a diver's place in the queue for a full trip.
// Positions for one trip are always 1..N with no gaps.
// NotifiedAt and ExpiresAt are set when the entry is promoted to the head
// and offered a freed seat.
type WaitlistEntry struct {
	ID         uuid.UUID  `json:"id"`
	TripID     uuid.UUID  `json:"trip_id"`
	DiverID    uuid.UUID  `json:"diver_id"`
	Position   int        `json:"position"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Promoted reports whether the entry has been offered a seat.
func (e WaitlistEntry) Promoted() bool {
	return e.NotifiedAt != nil
}

// Expired reports whether the promotion window has passed at now.
// An entry that was never promoted cannot expire.
func (e WaitlistEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}
