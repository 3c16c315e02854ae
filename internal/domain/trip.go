// Package domain contains the core data types for the dive trip booking service.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus is the publication state of a trip.
type TripStatus string

const (
	TripStatusDraft      TripStatus = "draft"
	TripStatusPublished  TripStatus = "published"
	TripStatusFull       TripStatus = "full"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusDraft, TripStatusPublished, TripStatusFull,
		TripStatusInProgress, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// EligibilityPolicy describes who may book a trip.
// Zero values mean "no requirement" except for MaxAge and
// MinCertificationLevel, which are optional.
type EligibilityPolicy struct {
	MinAge                int    `json:"min_age"`
	MaxAge                *int   `json:"max_age,omitempty"`
	MinCertificationLevel string `json:"min_certification_level,omitempty"`
	MinLoggedDives        int    `json:"min_logged_dives"`
}

// Gated reports whether any requirement is set that needs a diver profile
// to evaluate.
func (p EligibilityPolicy) Gated() bool {
	return p.MinAge > 0 || p.MaxAge != nil || p.MinCertificationLevel != "" || p.MinLoggedDives > 0
}

// Trip is a scheduled dive outing with a finite number of seats.
// Invariant: 0 <= CurrentParticipants <= MaxParticipants.
type Trip struct {
	ID      uuid.UUID  `json:"id"`
	OwnerID uuid.UUID  `json:"owner_id"`          // dive center owner who created the trip
	SiteID  *uuid.UUID `json:"site_id,omitempty"` // nil when the trip has no registered dive site
	Title   string     `json:"title"`

	DepartureTime       time.Time  `json:"departure_time"`
	MaxParticipants     int        `json:"max_participants"`
	CurrentParticipants int        `json:"current_participants"`
	Status              TripStatus `json:"status"`

	Eligibility EligibilityPolicy `json:"eligibility"`

	PricePerPerson          float64  `json:"price_per_person"`
	EquipmentRentalPrice    *float64 `json:"equipment_rental_price,omitempty"`
	ConservationFeeIncluded bool     `json:"conservation_fee_included"`

	CancellationDeadlineHours int `json:"cancellation_deadline_hours"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AvailableSeats returns how many more divers the trip can take.
func (t Trip) AvailableSeats() int {
	if n := t.MaxParticipants - t.CurrentParticipants; n > 0 {
		return n
	}
	return 0
}

// AcceptsBookings reports whether divers may currently book the trip.
// A full trip still accepts booking attempts; they land on the waitlist.
func (t Trip) AcceptsBookings() bool {
	return t.Status == TripStatusPublished || t.Status == TripStatusFull
}

// RecomputedStatus returns the status the trip should have given its
// participant counts. Only published and full trips flip; every other
// status is returned unchanged.
func (t Trip) RecomputedStatus() TripStatus {
	switch {
	case t.Status == TripStatusPublished && t.CurrentParticipants >= t.MaxParticipants:
		return TripStatusFull
	case t.Status == TripStatusFull && t.CurrentParticipants < t.MaxParticipants:
		return TripStatusPublished
	}
	return t.Status
}
