package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/service"
)

// CreateBookingRequest is the body of POST /trips/{id}/bookings.
type CreateBookingRequest struct {
	NumberOfDivers  int    `json:"number_of_divers"`
	NeedsEquipment  bool   `json:"needs_equipment"`
	SpecialRequests string `json:"special_requests"`
}

// UpdateBookingRequest is the body of PATCH /bookings/{id}. Absent fields
// are left unchanged.
type UpdateBookingRequest struct {
	NumberOfDivers  *int    `json:"number_of_divers"`
	NeedsEquipment  *bool   `json:"needs_equipment"`
	SpecialRequests *string `json:"special_requests"`
}

// WaitlistedResponse is returned with 202 when a full trip queues the diver
// instead of booking them.
type WaitlistedResponse struct {
	Waitlisted bool                 `json:"waitlisted"`
	Position   int                  `json:"position"`
	Entry      domain.WaitlistEntry `json:"entry"`
}

// CancelResponse is the body of POST /bookings/{id}/cancel.
type CancelResponse struct {
	Booking      domain.Booking `json:"booking"`
	RefundAmount float64        `json:"refund_amount"`
}

// BookingList is the body of the booking list endpoints.
type BookingList struct {
	Data       []domain.Booking `json:"data"`
	Pagination *Pagination      `json:"pagination,omitempty"`
}

// PriceRequest is the body of POST /trips/{id}/price.
type PriceRequest struct {
	NumberOfDivers int  `json:"number_of_divers"`
	NeedsEquipment bool `json:"needs_equipment"`
}

// PaymentEventRequest is the body of POST /payments/events.
type PaymentEventRequest struct {
	BookingID uuid.UUID            `json:"booking_id"`
	Status    domain.BookingStatus `json:"status"`
	Reference string               `json:"reference"`
	Amount    *float64             `json:"amount"`
}

// CreateBooking handles POST /trips/{id}/bookings.
// A booked seat gives 201, a full trip gives 202 with the waitlist position
// and an ineligible diver gives 422 with the reasons.
func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body CreateBookingRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := s.bookings.Create(r.Context(), a, tripID, service.CreateBookingInput{
		NumberOfDivers:  body.NumberOfDivers,
		NeedsEquipment:  body.NeedsEquipment,
		SpecialRequests: body.SpecialRequests,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch res.Outcome {
	case service.OutcomeWaitlisted:
		writeJSON(w, http.StatusAccepted, WaitlistedResponse{
			Waitlisted: true,
			Position:   res.Entry.Position,
			Entry:      *res.Entry,
		})
	case service.OutcomeIneligible:
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
			Code:    "not_eligible",
			Message: "diver does not meet the trip requirements",
			Reasons: res.Eligibility.Reasons,
		}})
	default:
		writeJSON(w, http.StatusCreated, res.Booking)
	}
}

// ListTripBookings handles GET /trips/{id}/bookings for the trip owner.
func (s *Server) ListTripBookings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	params, ok := pagination(w, r)
	if !ok {
		return
	}
	bookings, total, err := s.bookings.ListByTrip(r.Context(), a, tripID, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BookingList{
		Data:       bookings,
		Pagination: &Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// ListMyBookings handles GET /me/bookings.
func (s *Server) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	bookings, err := s.bookings.ListMine(r.Context(), a)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BookingList{Data: bookings})
}

// GetBooking handles GET /bookings/{id}.
func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.bookings.Get)
}

// UpdateBooking handles PATCH /bookings/{id}.
func (s *Server) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body UpdateBookingRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	b, err := s.bookings.Update(r.Context(), a, id, service.UpdateBookingInput{
		NumberOfDivers:  body.NumberOfDivers,
		NeedsEquipment:  body.NeedsEquipment,
		SpecialRequests: body.SpecialRequests,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CancelBooking handles POST /bookings/{id}/cancel.
func (s *Server) CancelBooking(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body ReasonRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	res, err := s.bookings.Cancel(r.Context(), a, id, body.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{Booking: res.Booking, RefundAmount: res.RefundAmount})
}

// ConfirmBooking handles POST /bookings/{id}/confirm.
func (s *Server) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.bookings.Confirm)
}

// GiveParentConsent handles POST /bookings/{id}/consent.
func (s *Server) GiveParentConsent(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.bookings.GiveParentConsent)
}

// SignWaiver handles POST /bookings/{id}/waiver.
func (s *Server) SignWaiver(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.bookings.SignWaiver)
}

// CheckInBooking handles POST /bookings/{id}/check-in.
func (s *Server) CheckInBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.bookings.CheckIn)
}

// CompleteBooking handles POST /bookings/{id}/complete.
func (s *Server) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	s.bookingAction(w, r, s.bookings.Complete)
}

// RecordPaymentEvent handles POST /payments/events.
func (s *Server) RecordPaymentEvent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body PaymentEventRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.BookingID == uuid.Nil {
		requestError(w, "booking_id is required")
		return
	}

	b, err := s.bookings.RecordPaymentEvent(r.Context(), a, service.PaymentEvent{
		BookingID: body.BookingID,
		Status:    body.Status,
		Reference: body.Reference,
		Amount:    body.Amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// QuotePrice handles POST /trips/{id}/price.
func (s *Server) QuotePrice(w http.ResponseWriter, r *http.Request) {
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body PriceRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	price, err := s.bookings.CalculatePrice(r.Context(), tripID, body.NumberOfDivers, body.NeedsEquipment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

// CheckEligibility handles GET /trips/{id}/eligibility for the calling diver.
func (s *Server) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	e, err := s.bookings.CheckEligibility(r.Context(), tripID, a.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if e.Reasons == nil {
		e.Reasons = []string{}
	}
	writeJSON(w, http.StatusOK, e)
}

type bookingFunc func(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Booking, error)

func (s *Server) bookingAction(w http.ResponseWriter, r *http.Request, fn bookingFunc) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	b, err := fn(r.Context(), a, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
