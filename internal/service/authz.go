package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

// Capability is an action an actor may be allowed to take.
type Capability string

const (
	CapCreateTrip       Capability = "trip:create"
	CapManageTrip       Capability = "trip:manage"
	CapViewTripBookings Capability = "trip:bookings:view"
	CapViewWaitlist     Capability = "trip:waitlist:view"
	CapBook             Capability = "booking:create"
	CapAccessBooking    Capability = "booking:access"
	CapOperateBooking   Capability = "booking:operate"
	CapRecordPayment    Capability = "booking:payment"
	CapLeaveWaitlist    Capability = "waitlist:leave"
)

// Resource is what a capability is checked against. Unused fields stay zero.
type Resource struct {
	Trip    *domain.Trip
	Booking *domain.Booking
	DiverID uuid.UUID
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorizer decides whether an actor holds a capability on a resource.
type Authorizer interface {
	Authorize(ctx context.Context, actor domain.Actor, c Capability, res Resource) Decision
}

// OwnershipPolicy is the default Authorizer: admins may do anything, a
// center owner manages their own trips and the bookings on them, and a
// diver manages their own bookings and waitlist entries. Payment events
// are admin only.
type OwnershipPolicy struct{}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Authorize implements Authorizer.
func (OwnershipPolicy) Authorize(_ context.Context, actor domain.Actor, c Capability, res Resource) Decision {
	if actor.IsAdmin() {
		return allow()
	}
	ownsTrip := res.Trip != nil && res.Trip.OwnerID == actor.ID

	switch c {
	case CapCreateTrip:
		if actor.Role == domain.RoleCenterOwner {
			return allow()
		}
		return deny("only dive center owners can create trips")

	case CapManageTrip, CapViewTripBookings, CapViewWaitlist, CapOperateBooking:
		if ownsTrip {
			return allow()
		}
		return deny("not the owner of this trip")

	case CapBook:
		if actor.Role == domain.RoleDiver && res.DiverID == actor.ID {
			return allow()
		}
		return deny("only divers can book for themselves")

	case CapAccessBooking:
		if ownsTrip || (res.Booking != nil && res.Booking.DiverID == actor.ID) {
			return allow()
		}
		return deny("not the diver or trip owner of this booking")

	case CapLeaveWaitlist:
		if ownsTrip || res.DiverID == actor.ID {
			return allow()
		}
		return deny("not the diver or trip owner of this waitlist entry")
	}
	return deny("requires admin")
}

// authorize turns a denial into domain.ErrForbidden.
func authorize(ctx context.Context, a Authorizer, actor domain.Actor, c Capability, res Resource) error {
	d := a.Authorize(ctx, actor, c, res)
	if !d.Allowed {
		return fmt.Errorf("%w: %s", domain.ErrForbidden, d.Reason)
	}
	return nil
}
