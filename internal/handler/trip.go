package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

// TripRequest is the body of POST /trips and PUT /trips/{id}.
type TripRequest struct {
	Title                     string                   `json:"title"`
	SiteID                    *uuid.UUID               `json:"site_id"`
	DepartureTime             time.Time                `json:"departure_time"`
	MaxParticipants           int                      `json:"max_participants"`
	Eligibility               domain.EligibilityPolicy `json:"eligibility"`
	PricePerPerson            float64                  `json:"price_per_person"`
	EquipmentRentalPrice      *float64                 `json:"equipment_rental_price"`
	ConservationFeeIncluded   bool                     `json:"conservation_fee_included"`
	CancellationDeadlineHours int                      `json:"cancellation_deadline_hours"`
}

// ReasonRequest is the optional body of the cancel endpoints.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// TripList is the body of GET /trips.
type TripList struct {
	Data       []domain.Trip `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var body TripRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	created, err := s.trips.Create(r.Context(), a, body.toTrip(uuid.Nil))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListTrips handles GET /trips.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	params, ok := pagination(w, r)
	if !ok {
		return
	}
	trips, total, err := s.trips.List(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TripList{
		Data:       trips,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	trip, err := s.trips.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// UpdateTrip handles PUT /trips/{id}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body TripRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	updated, err := s.trips.Update(r.Context(), a, body.toTrip(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// PublishTrip handles POST /trips/{id}/publish.
func (s *Server) PublishTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Publish)
}

// StartTrip handles POST /trips/{id}/start.
func (s *Server) StartTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Start)
}

// CompleteTrip handles POST /trips/{id}/complete.
func (s *Server) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Complete)
}

// CancelTrip handles POST /trips/{id}/cancel. Every active booking on the
// trip is cancelled with a full refund.
func (s *Server) CancelTrip(w http.ResponseWriter, r *http.Request) {
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

	trip, err := s.trips.Cancel(r.Context(), a, id, body.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

type tripStatusFunc func(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error)

func (s *Server) tripTransition(w http.ResponseWriter, r *http.Request, fn tripStatusFunc) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	trip, err := fn(r.Context(), a, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// toTrip converts the request into a domain.Trip. Owner, status and
// counters are set by the service.
func (b TripRequest) toTrip(id uuid.UUID) domain.Trip {
	return domain.Trip{
		ID:                        id,
		Title:                     b.Title,
		SiteID:                    b.SiteID,
		DepartureTime:             b.DepartureTime,
		MaxParticipants:           b.MaxParticipants,
		Eligibility:               b.Eligibility,
		PricePerPerson:            b.PricePerPerson,
		EquipmentRentalPrice:      b.EquipmentRentalPrice,
		ConservationFeeIncluded:   b.ConservationFeeIncluded,
		CancellationDeadlineHours: b.CancellationDeadlineHours,
	}
}
