package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

// manifestHeaders are the column names written as the first row of a CSV manifest.
var manifestHeaders = []string{
	"booking_id", "diver_id", "diver_name", "diver_email",
	"number_of_divers", "needs_equipment", "status",
	"waiver_signed_at", "parent_consent_required", "parent_consent_given_at",
	"total",
}

// ManifestEntry is one row of the JSON manifest.
type ManifestEntry struct {
	BookingID             uuid.UUID            `json:"booking_id"`
	DiverID               uuid.UUID            `json:"diver_id"`
	DiverName             string               `json:"diver_name,omitempty"`
	DiverEmail            string               `json:"diver_email,omitempty"`
	NumberOfDivers        int                  `json:"number_of_divers"`
	NeedsEquipment        bool                 `json:"needs_equipment"`
	Status                domain.BookingStatus `json:"status"`
	WaiverSignedAt        *time.Time           `json:"waiver_signed_at,omitempty"`
	ParentConsentRequired bool                 `json:"parent_consent_required"`
	ParentConsentGivenAt  *time.Time           `json:"parent_consent_given_at,omitempty"`
	Total                 float64              `json:"total"`
}

// GetManifest handles GET /trips/{id}/manifest.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetManifest(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "csv" && format != "json" {
		requestError(w, "format must be csv or json")
		return
	}

	rows, err := s.export.Manifest(r.Context(), a, tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if format == "csv" {
		writeManifestCSV(w, tripID, rows)
		return
	}
	out := make([]ManifestEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, ManifestEntry(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeManifestCSV buffers the whole manifest so a failure never leaves a
// half-written 200 response.
func writeManifestCSV(w http.ResponseWriter, tripID uuid.UUID, rows []domain.ManifestRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	// bytes.Buffer writes never fail.
	_ = cw.Write(manifestHeaders)
	for _, row := range rows {
		_ = cw.Write(manifestRecord(row))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="manifest-`+tripID.String()+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func manifestRecord(r domain.ManifestRow) []string {
	return []string{
		r.BookingID.String(),
		r.DiverID.String(),
		r.DiverName,
		r.DiverEmail,
		strconv.Itoa(r.NumberOfDivers),
		strconv.FormatBool(r.NeedsEquipment),
		string(r.Status),
		formatTime(r.WaiverSignedAt),
		strconv.FormatBool(r.ParentConsentRequired),
		formatTime(r.ParentConsentGivenAt),
		strconv.FormatFloat(r.Total, 'f', 2, 64),
	}
}

// formatTime returns RFC3339 or an empty string for nil.
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
