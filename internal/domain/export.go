package domain

import (
	"time"

	"github.com/google/uuid"
)

// ManifestRow is one line of a trip's passenger manifest: an active booking
// joined with the diver's contact details. Contact fields are empty when the
// diver has no profile on file.
type ManifestRow struct {
	BookingID      uuid.UUID
	DiverID        uuid.UUID
	DiverName      string
	DiverEmail     string
	NumberOfDivers int
	NeedsEquipment bool
	Status         BookingStatus

	WaiverSignedAt        *time.Time
	ParentConsentRequired bool
	ParentConsentGivenAt  *time.Time

	Total float64
}
