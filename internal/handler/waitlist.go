package handler

import (
	"net/http"

	"github.com/reefline/divetrips/internal/domain"
)

// WaitlistResponse is the body of GET /trips/{id}/waitlist.
type WaitlistResponse struct {
	Data []domain.WaitlistEntry `json:"data"`
}

// JoinWaitlist handles POST /trips/{id}/waitlist.
func (s *Server) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entry, err := s.waitlist.Join(r.Context(), a, tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// ListWaitlist handles GET /trips/{id}/waitlist.
func (s *Server) ListWaitlist(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entries, err := s.waitlist.List(r.Context(), a, tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WaitlistResponse{Data: entries})
}

// GetMyWaitlistEntry handles GET /trips/{id}/waitlist/me.
func (s *Server) GetMyWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	entry, err := s.waitlist.Get(r.Context(), a, tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// LeaveWaitlist handles DELETE /trips/{id}/waitlist/me.
func (s *Server) LeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.waitlist.Leave(r.Context(), a, tripID, a.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFromWaitlist handles DELETE /trips/{id}/waitlist/{diverId}, used by
// trip owners and admins to drop someone from the queue.
func (s *Server) RemoveFromWaitlist(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	diverID, ok := pathUUID(w, r, "diverId")
	if !ok {
		return
	}
	if err := s.waitlist.Leave(r.Context(), a, tripID, diverID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
