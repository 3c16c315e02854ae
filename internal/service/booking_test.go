package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/service"
)

// ---- Create ----------------------------------------------------------------

func TestBookingService_Create_OK(t *testing.T) {
	f := newFixture(t)
	site := uuid.New()
	f.store.PutSiteFee(site, 35)
	trip := f.publishedTrip(t, func(tr *domain.Trip) { tr.SiteID = &site })
	d := f.newDiver()

	res, err := f.bookings.Create(context.Background(), d, trip.ID, service.CreateBookingInput{
		NumberOfDivers:  2,
		NeedsEquipment:  true,
		SpecialRequests: "  nitrox please ",
	})

	require.NoError(t, err)
	require.Equal(t, service.OutcomeBooked, res.Outcome)
	b := res.Booking
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Equal(t, 1507.5, b.Price.Total)
	assert.Equal(t, "nitrox please", b.SpecialRequests)
	assert.False(t, b.ParentConsentRequired)
	assert.Equal(t, 2, f.trip(t, trip.ID).CurrentParticipants)
}

func TestBookingService_Create_Ineligible(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, func(tr *domain.Trip) {
		tr.Eligibility = domain.EligibilityPolicy{MinAge: 10, MinLoggedDives: 5}
	})
	child := f.newDiverWithProfile(func(p *domain.DiverProfile) {
		dob := baseTime.AddDate(-9, 0, 0)
		p.DateOfBirth = &dob
		p.TotalLoggedDives = 0
	})

	res, err := f.bookings.Create(context.Background(), child, trip.ID, service.CreateBookingInput{NumberOfDivers: 1})

	require.NoError(t, err, "ineligibility is a result, not an error")
	assert.Equal(t, service.OutcomeIneligible, res.Outcome)
	require.NotNil(t, res.Eligibility)
	assert.Len(t, res.Eligibility.Reasons, 2)
	assert.Zero(t, f.trip(t, trip.ID).CurrentParticipants)
}

func TestBookingService_Create_NoProfileOnGatedTrip(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, func(tr *domain.Trip) {
		tr.Eligibility.MinCertificationLevel = "Open Water"
	})
	stranger := domain.Actor{ID: uuid.New(), Role: domain.RoleDiver}

	res, err := f.bookings.Create(context.Background(), stranger, trip.ID, service.CreateBookingInput{NumberOfDivers: 1})

	require.NoError(t, err)
	assert.Equal(t, service.OutcomeIneligible, res.Outcome)
	assert.Equal(t, []string{service.ReasonProfileIncomplete}, res.Eligibility.Reasons)
}

func TestBookingService_Create_MinorNeedsConsent(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	teen := f.newDiverWithProfile(func(p *domain.DiverProfile) {
		dob := baseTime.AddDate(-15, 0, 0)
		p.DateOfBirth = &dob
	})

	b := f.book(t, teen, trip.ID, 1)

	assert.True(t, b.ParentConsentRequired)
	assert.True(t, b.NeedsParentConsent())
}

func TestBookingService_Create_DuplicateActive(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	f.book(t, d, trip.ID, 1)

	_, err := f.bookings.Create(context.Background(), d, trip.ID, service.CreateBookingInput{NumberOfDivers: 1})

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, f.trip(t, trip.ID).CurrentParticipants, "a rejected booking must not hold seats")
}

func TestBookingService_Create_RebookAfterCancel(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	first := f.book(t, d, trip.ID, 1)
	_, err := f.bookings.Cancel(context.Background(), d, first.ID, "changed plans")
	require.NoError(t, err)

	second := f.book(t, d, trip.ID, 1)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestBookingService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)

	_, err := f.bookings.Create(context.Background(), f.newDiver(), trip.ID, service.CreateBookingInput{NumberOfDivers: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)

	draft, err := f.trips.Create(context.Background(), f.owner, validTrip())
	require.NoError(t, err)
	_, err = f.bookings.Create(context.Background(), f.newDiver(), draft.ID, service.CreateBookingInput{NumberOfDivers: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.bookings.Create(context.Background(), f.newDiver(), uuid.New(), service.CreateBookingInput{NumberOfDivers: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingService_Create_OwnerCannotBook(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)

	_, err := f.bookings.Create(context.Background(), f.owner, trip.ID, service.CreateBookingInput{NumberOfDivers: 1})

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestBookingService_Create_ProfileLookupError(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	boom := errors.New("profile service unavailable")
	svc := service.NewBookingService(
		f.store, f.store.Repos(),
		&mockProfiles{getProfile: func(context.Context, uuid.UUID) (domain.DiverProfile, error) {
			return domain.DiverProfile{}, boom
		}},
		service.NewPricingEngine(nil, service.DefaultPricingPolicy()),
		f.waitlist, service.OwnershipPolicy{}, nil,
		service.WithClock(f.clock.Now), service.WithLogger(quietLogger()),
	)

	_, err := svc.Create(context.Background(), f.newDiver(), trip.ID, service.CreateBookingInput{NumberOfDivers: 1})

	assert.ErrorIs(t, err, boom)
}

func TestBookingService_Create_RemovesWaitlistEntry(t *testing.T) {
	f := newFixture(t)
	trip, bookings := f.fullTrip(t, 1)
	d := f.newDiver()
	_, err := f.waitlist.Join(context.Background(), d, trip.ID)
	require.NoError(t, err)
	_, err = f.bookings.Cancel(context.Background(), f.owner, bookings[0].ID, "")
	require.NoError(t, err)

	f.book(t, d, trip.ID, 1)

	_, err = f.waitlist.Get(context.Background(), d, trip.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- full trip / waitlist scenario -------------------------------------------

func TestBookingService_FullTrip_WaitlistThenPromotion(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, func(tr *domain.Trip) { tr.MaxParticipants = 2 })
	a, b := f.newDiver(), f.newDiver()
	paid := f.pay(t, f.book(t, a, trip.ID, 1).ID)
	f.book(t, b, trip.ID, 1)
	require.Equal(t, 2, f.trip(t, trip.ID).CurrentParticipants)

	late := f.newDiver()
	res, err := f.bookings.Create(context.Background(), late, trip.ID, service.CreateBookingInput{NumberOfDivers: 1})
	require.NoError(t, err)
	require.Equal(t, service.OutcomeWaitlisted, res.Outcome)
	assert.Equal(t, 1, res.Entry.Position)

	out, err := f.bookings.Cancel(context.Background(), a, paid.ID, "sick")
	require.NoError(t, err)

	tr := f.trip(t, trip.ID)
	assert.Equal(t, 1, tr.CurrentParticipants)
	assert.Equal(t, domain.TripStatusPublished, tr.Status)

	require.NotNil(t, out.Promoted)
	assert.Equal(t, late.ID, out.Promoted.DiverID)
	assert.Equal(t, baseTime.Add(24*time.Hour), *out.Promoted.ExpiresAt)

	// Seven days out: full refund, handed to the payment outbox.
	assert.Equal(t, paid.Price.Total, out.RefundAmount)
	refunds := f.store.Refunds()
	require.Len(t, refunds, 1)
	assert.Equal(t, paid.ID, refunds[0].BookingID)
	assert.Equal(t, paid.Price.Total, refunds[0].Amount)

	sent := f.notifier.ofKind(domain.NotificationWaitlistSpotAvailable)
	require.Len(t, sent, 1)
	assert.Equal(t, late.ID, sent[0].DiverID)
}

// ---- Cancel ----------------------------------------------------------------

func TestBookingService_Cancel_PartialRefundBand(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	paid := f.pay(t, f.book(t, d, trip.ID, 1).ID)

	f.clock.t = trip.DepartureTime.Add(-30 * time.Hour)
	out, err := f.bookings.Cancel(context.Background(), d, paid.ID, "")

	require.NoError(t, err)
	assert.Equal(t, domain.Round2(paid.Price.Total*0.5), out.RefundAmount)
	assert.Equal(t, domain.BookingStatusCancelled, out.Booking.Status)
	require.NotNil(t, out.Booking.CancelledBy)
	assert.Equal(t, d.ID, *out.Booking.CancelledBy)
}

func TestBookingService_Cancel_PastDeadline(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	paid := f.pay(t, f.book(t, d, trip.ID, 1).ID)

	f.clock.t = trip.DepartureTime.Add(-2 * time.Hour)
	out, err := f.bookings.Cancel(context.Background(), d, paid.ID, "")

	require.NoError(t, err)
	assert.Zero(t, out.RefundAmount)
	assert.Empty(t, f.store.Refunds(), "nothing to refund, nothing queued")
	require.NotNil(t, out.Booking.RefundAmount)
	assert.Zero(t, *out.Booking.RefundAmount)
}

func TestBookingService_Cancel_UnpaidRefundsNothing(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	pending := f.book(t, d, trip.ID, 2)

	out, err := f.bookings.Cancel(context.Background(), d, pending.ID, "")

	require.NoError(t, err)
	assert.Zero(t, out.RefundAmount)
	assert.Zero(t, f.trip(t, trip.ID).CurrentParticipants)
	assert.Len(t, f.notifier.ofKind(domain.NotificationBookingCancelled), 1)
}

func TestBookingService_Cancel_Terminal(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 1)
	_, err := f.bookings.Cancel(context.Background(), d, b.ID, "")
	require.NoError(t, err)

	_, err = f.bookings.Cancel(context.Background(), d, b.ID, "")

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.trip(t, trip.ID).CurrentParticipants, "seats must not be released twice")
}

func TestBookingService_Cancel_CheckedInNotCancellable(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 1)
	f.pay(t, b.ID)
	_, err := f.bookings.SignWaiver(context.Background(), d, b.ID)
	require.NoError(t, err)
	_, err = f.bookings.CheckIn(context.Background(), f.owner, b.ID)
	require.NoError(t, err)

	_, err = f.bookings.Cancel(context.Background(), d, b.ID, "")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBookingService_Cancel_Forbidden(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	b := f.book(t, f.newDiver(), trip.ID, 1)

	_, err := f.bookings.Cancel(context.Background(), f.newDiver(), b.ID, "")

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 1, f.trip(t, trip.ID).CurrentParticipants)
}

func TestBookingService_Cancel_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.bookings.Cancel(context.Background(), f.admin, uuid.New(), "")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- lifecycle -------------------------------------------------------------

func TestBookingService_Lifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 1)
	ctx := context.Background()

	b, err := f.bookings.Confirm(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)

	b = f.pay(t, b.ID)
	assert.Equal(t, domain.BookingStatusPaid, b.Status)
	assert.NotEmpty(t, b.PaymentReference)

	_, err = f.bookings.CheckIn(ctx, f.owner, b.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "waiver is required")

	_, err = f.bookings.SignWaiver(ctx, d, b.ID)
	require.NoError(t, err)
	b, err = f.bookings.CheckIn(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCheckedIn, b.Status)
	assert.NotNil(t, b.CheckedInAt)

	b, err = f.bookings.Complete(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, b.Status)

	_, err = f.bookings.SignWaiver(ctx, d, b.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "no mutation after completion")
}

func TestBookingService_Confirm_MinorNeedsConsent(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	teen := f.newDiverWithProfile(func(p *domain.DiverProfile) {
		dob := baseTime.AddDate(-16, 0, 0)
		p.DateOfBirth = &dob
	})
	b := f.book(t, teen, trip.ID, 1)
	ctx := context.Background()

	_, err := f.bookings.Confirm(ctx, f.owner, b.ID)
	require.ErrorIs(t, err, domain.ErrValidation)

	consented, err := f.bookings.GiveParentConsent(ctx, teen, b.ID)
	require.NoError(t, err)
	assert.Equal(t, baseTime, *consented.ParentConsentGivenAt)

	b, err = f.bookings.Confirm(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
}

func TestBookingService_GiveParentConsent_AdultRejected(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 1)

	_, err := f.bookings.GiveParentConsent(context.Background(), d, b.ID)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBookingService_Confirm_DiverCannotConfirm(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 1)

	_, err := f.bookings.Confirm(context.Background(), d, b.ID)

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestBookingService_Complete_RequiresCheckIn(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	b := f.pay(t, f.book(t, f.newDiver(), trip.ID, 1).ID)

	_, err := f.bookings.Complete(context.Background(), f.owner, b.ID)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- payment events --------------------------------------------------------

func TestBookingService_RecordPaymentEvent_Refunded(t *testing.T) {
	f := newFixture(t)
	trip, bookings := f.fullTrip(t, 1)
	waiting := f.newDiver()
	_, err := f.waitlist.Join(context.Background(), waiting, trip.ID)
	require.NoError(t, err)
	f.pay(t, bookings[0].ID)

	b, err := f.bookings.RecordPaymentEvent(context.Background(), f.admin, service.PaymentEvent{
		BookingID: bookings[0].ID,
		Status:    domain.BookingStatusRefunded,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRefunded, b.Status)
	assert.Equal(t, b.Price.Total, *b.RefundAmount)
	assert.Zero(t, f.trip(t, trip.ID).CurrentParticipants)
	assert.Len(t, f.notifier.ofKind(domain.NotificationWaitlistSpotAvailable), 1)
}

func TestBookingService_RecordPaymentEvent_PartialRefundKeepsSeat(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	b := f.pay(t, f.book(t, f.newDiver(), trip.ID, 2).ID)

	got, err := f.bookings.RecordPaymentEvent(context.Background(), f.admin, service.PaymentEvent{
		BookingID: b.ID,
		Status:    domain.BookingStatusPartiallyRefunded,
		Amount:    ptr(100.004),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPartiallyRefunded, got.Status)
	assert.Equal(t, 100.0, *got.RefundAmount)
	assert.Equal(t, 2, f.trip(t, trip.ID).CurrentParticipants)
}

func TestBookingService_PartiallyRefunded_CanStillBoard(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.pay(t, f.book(t, d, trip.ID, 1).ID)
	ctx := context.Background()

	_, err := f.bookings.RecordPaymentEvent(ctx, f.admin, service.PaymentEvent{
		BookingID: b.ID,
		Status:    domain.BookingStatusPartiallyRefunded,
		Amount:    ptr(50.0),
	})
	require.NoError(t, err)
	_, err = f.bookings.SignWaiver(ctx, d, b.ID)
	require.NoError(t, err)

	got, err := f.bookings.CheckIn(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCheckedIn, got.Status)
}

func TestBookingService_PartiallyRefunded_CancelRefundsBalance(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.pay(t, f.book(t, d, trip.ID, 2).ID)
	ctx := context.Background()

	_, err := f.bookings.RecordPaymentEvent(ctx, f.admin, service.PaymentEvent{
		BookingID: b.ID,
		Status:    domain.BookingStatusPartiallyRefunded,
		Amount:    ptr(100.0),
	})
	require.NoError(t, err)

	res, err := f.bookings.Cancel(ctx, d, b.ID, "")

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, res.Booking.Status)
	assert.InDelta(t, b.Price.Total-100, res.RefundAmount, 0.001, "only the balance still held goes back")
	assert.InDelta(t, b.Price.Total, *res.Booking.RefundAmount, 0.001)
	assert.Zero(t, f.trip(t, trip.ID).CurrentParticipants)
	refunds := f.store.Refunds()
	require.Len(t, refunds, 1)
	assert.InDelta(t, b.Price.Total-100, refunds[0].Amount, 0.001)
}

func TestBookingService_RecordPaymentEvent_PartialRefundOverTotal(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	b := f.pay(t, f.book(t, f.newDiver(), trip.ID, 1).ID)

	_, err := f.bookings.RecordPaymentEvent(context.Background(), f.admin, service.PaymentEvent{
		BookingID: b.ID,
		Status:    domain.BookingStatusPartiallyRefunded,
		Amount:    ptr(b.Price.Total + 1),
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBookingService_PendingCanBePaidBeforeConfirm(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	minor := f.newDiverWithProfile(func(p *domain.DiverProfile) {
		dob := baseTime.AddDate(-15, 0, 0)
		p.DateOfBirth = &dob
	})
	b := f.book(t, minor, trip.ID, 1)
	require.True(t, b.ParentConsentRequired)
	ctx := context.Background()

	paid := f.pay(t, b.ID)
	assert.Equal(t, domain.BookingStatusPaid, paid.Status)

	_, err := f.bookings.SignWaiver(ctx, minor, b.ID)
	require.NoError(t, err)
	_, err = f.bookings.CheckIn(ctx, f.owner, b.ID)
	assert.ErrorIs(t, err, domain.ErrValidation, "consent still gates boarding")
}

func TestBookingService_RecordPaymentEvent_Rules(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	pending := f.book(t, d, trip.ID, 1)
	ctx := context.Background()

	_, err := f.bookings.RecordPaymentEvent(ctx, f.admin, service.PaymentEvent{BookingID: pending.ID, Status: domain.BookingStatusRefunded})
	assert.ErrorIs(t, err, domain.ErrValidation, "only paid bookings can be refunded")

	_, err = f.bookings.RecordPaymentEvent(ctx, f.admin, service.PaymentEvent{BookingID: pending.ID, Status: domain.BookingStatusCompleted})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.bookings.RecordPaymentEvent(ctx, d, service.PaymentEvent{BookingID: pending.ID, Status: domain.BookingStatusPaid})
	assert.ErrorIs(t, err, domain.ErrForbidden, "divers cannot report their own payments")
}

// ---- Update ----------------------------------------------------------------

func TestBookingService_Update_MoreDiversNeedSeats(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, func(tr *domain.Trip) { tr.MaxParticipants = 3 })
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 1)

	got, err := f.bookings.Update(context.Background(), d, b.ID, service.UpdateBookingInput{NumberOfDivers: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, got.NumberOfDivers)
	assert.Equal(t, 1500.0, got.Price.Base)
	assert.Equal(t, domain.TripStatusFull, f.trip(t, trip.ID).Status)

	_, err = f.bookings.Update(context.Background(), d, b.ID, service.UpdateBookingInput{NumberOfDivers: ptr(4)})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, f.trip(t, trip.ID).CurrentParticipants)
}

func TestBookingService_Update_FewerDiversPromotes(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, func(tr *domain.Trip) { tr.MaxParticipants = 2 })
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 2)
	waiting := f.newDiver()
	_, err := f.waitlist.Join(context.Background(), waiting, trip.ID)
	require.NoError(t, err)

	got, err := f.bookings.Update(context.Background(), d, b.ID, service.UpdateBookingInput{
		NumberOfDivers: ptr(1),
		NeedsEquipment: ptr(true),
	})

	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price.Equipment)
	assert.Equal(t, 1, f.trip(t, trip.ID).CurrentParticipants)
	sent := f.notifier.ofKind(domain.NotificationWaitlistSpotAvailable)
	require.Len(t, sent, 1)
	assert.Equal(t, waiting.ID, sent[0].DiverID)
}

func TestBookingService_Update_AfterPaymentRejected(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.pay(t, f.book(t, d, trip.ID, 1).ID)

	_, err := f.bookings.Update(context.Background(), d, b.ID, service.UpdateBookingInput{SpecialRequests: ptr("vegan lunch")})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- reads -----------------------------------------------------------------

func TestBookingService_Reads(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, nil)
	d := f.newDiver()
	b := f.book(t, d, trip.ID, 1)
	ctx := context.Background()

	got, err := f.bookings.Get(ctx, d, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.bookings.Get(ctx, f.newDiver(), b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, total, err := f.bookings.ListByTrip(ctx, f.owner, trip.ID, domain.NewPaginationParams(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	_, _, err = f.bookings.ListByTrip(ctx, d, trip.ID, domain.NewPaginationParams(nil, nil))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := f.bookings.ListMine(ctx, d)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := f.bookings.ListMine(ctx, f.newDiver())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestBookingService_CalculatePriceAndEligibility(t *testing.T) {
	f := newFixture(t)
	trip := f.publishedTrip(t, func(tr *domain.Trip) { tr.Eligibility.MinLoggedDives = 100 })
	d := f.newDiver()
	ctx := context.Background()

	price, err := f.bookings.CalculatePrice(ctx, trip.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, price.Sum(), price.Total)
	assert.Zero(t, f.trip(t, trip.ID).CurrentParticipants, "quoting must not reserve")

	elig, err := f.bookings.CheckEligibility(ctx, trip.ID, d.ID)
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Len(t, elig.Reasons, 1)
}
