package service

import (
	"time"

	"github.com/reefline/divetrips/internal/domain"
)

// FullRefundHours is how far ahead of departure a cancellation must be made
// to get the whole total back.
const FullRefundHours = 48

// PartialRefundRate applies between the trip's deadline and FullRefundHours.
const PartialRefundRate = 0.5

// CalculateRefund returns the refund for cancelling a booking worth total on
// trip at now. The no-refund deadline is checked before the full-refund band,
// so a deadline above FullRefundHours leaves no partial band at all.
func CalculateRefund(total float64, trip domain.Trip, now time.Time) float64 {
	hours := trip.DepartureTime.Sub(now).Hours()
	switch {
	case hours < float64(trip.CancellationDeadlineHours):
		return 0
	case hours >= FullRefundHours:
		return domain.Round2(total)
	default:
		return domain.Round2(total * PartialRefundRate)
	}
}
