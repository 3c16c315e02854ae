package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is a state in the booking lifecycle:
//
//	pending -> confirmed -> paid -> checked_in -> completed
//	pending|confirmed|paid -> cancelled
//	paid -> refunded | partially_refunded   (payment collaborator)
//	partially_refunded -> checked_in | cancelled | refunded
type BookingStatus string

const (
	BookingStatusPending           BookingStatus = "pending"
	BookingStatusConfirmed         BookingStatus = "confirmed"
	BookingStatusPaid              BookingStatus = "paid"
	BookingStatusCheckedIn         BookingStatus = "checked_in"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusCancelled         BookingStatus = "cancelled"
	BookingStatusRefunded          BookingStatus = "refunded"
	BookingStatusPartiallyRefunded BookingStatus = "partially_refunded"
)

// InactiveBookingStatuses are the statuses that do not count towards the
// one-active-booking-per-diver rule.
var InactiveBookingStatuses = []BookingStatus{BookingStatusCancelled, BookingStatusRefunded}

// pending -> paid is allowed: a payment may land before the operator confirms.
// Parent consent is still enforced at check-in, so a minor's paid booking
// cannot board without it.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:           {BookingStatusConfirmed, BookingStatusPaid, BookingStatusCancelled},
	BookingStatusConfirmed:         {BookingStatusPaid, BookingStatusCancelled},
	BookingStatusPaid:              {BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusRefunded, BookingStatusPartiallyRefunded},
	BookingStatusPartiallyRefunded: {BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusRefunded},
	BookingStatusCheckedIn:         {BookingStatusCompleted},
}

// Terminal reports whether no further lifecycle mutation is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusRefunded
}

// Active reports whether the booking counts as the diver's booking on the trip.
func (s BookingStatus) Active() bool {
	for _, inactive := range InactiveBookingStatuses {
		if s == inactive {
			return false
		}
	}
	return true
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PriceBreakdown is the itemised price of a booking in SAR.
// Invariant: Total == Base+Equipment+Conservation+Insurance+PlatformFee+VAT-Discount.
type PriceBreakdown struct {
	Base         float64 `json:"base"`
	Equipment    float64 `json:"equipment"`
	Conservation float64 `json:"conservation"`
	Insurance    float64 `json:"insurance"`
	PlatformFee  float64 `json:"platform_fee"`
	VAT          float64 `json:"vat"`
	Discount     float64 `json:"discount"`
	Total        float64 `json:"total"`
}

// Sum adds the components the same way Total is defined.
func (p PriceBreakdown) Sum() float64 {
	return Round2(p.Base + p.Equipment + p.Conservation + p.Insurance + p.PlatformFee + p.VAT - p.Discount)
}

// Booking is a diver's reservation of one or more seats on a trip.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	TripID          uuid.UUID     `json:"trip_id"`
	DiverID         uuid.UUID     `json:"diver_id"`
	Status          BookingStatus `json:"status"`
	NumberOfDivers  int           `json:"number_of_divers"`
	NeedsEquipment  bool          `json:"needs_equipment"`
	SpecialRequests string        `json:"special_requests,omitempty"`

	Price PriceBreakdown `json:"price"`

	ParentConsentRequired bool       `json:"parent_consent_required"`
	ParentConsentGivenAt  *time.Time `json:"parent_consent_given_at,omitempty"`
	WaiverSignedAt        *time.Time `json:"waiver_signed_at,omitempty"`
	CheckedInAt           *time.Time `json:"checked_in_at,omitempty"`

	PaymentReference string `json:"payment_reference,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	RefundAmount       *float64   `json:"refund_amount,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NeedsParentConsent reports whether the booking is still waiting on a
// guardian's consent.
func (b Booking) NeedsParentConsent() bool {
	return b.ParentConsentRequired && b.ParentConsentGivenAt == nil
}

// PaidBalance is the money held for the booking that has not been handed
// back yet. Only paid and partially refunded bookings hold any.
func (b Booking) PaidBalance() float64 {
	switch b.Status {
	case BookingStatusPaid:
		return b.Price.Total
	case BookingStatusPartiallyRefunded:
		refunded := 0.0
		if b.RefundAmount != nil {
			refunded = *b.RefundAmount
		}
		return max(0, Round2(b.Price.Total-refunded))
	}
	return 0
}

// RefundRequest is the instruction handed to the payment subsystem when a
// paid booking is cancelled. The money movement happens elsewhere.
type RefundRequest struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"booking_id"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
