package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind names what a notification is about.
type NotificationKind string

const (
	NotificationWaitlistSpotAvailable NotificationKind = "waitlist_spot_available"
	NotificationBookingCancelled      NotificationKind = "booking_cancelled"
	NotificationTripCancelled         NotificationKind = "trip_cancelled"
)

// Notification is a message for one diver. Delivery is best-effort.
type Notification struct {
	Kind      NotificationKind
	DiverID   uuid.UUID
	TripID    uuid.UUID
	BookingID *uuid.UUID
	TripTitle string

	// ExpiresAt is set for waitlist promotions.
	ExpiresAt *time.Time
	// RefundAmount is set for cancellations.
	RefundAmount *float64
}
