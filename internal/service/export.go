package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
)

// manifestPageSize is how many bookings are read per page while building a
// manifest.
const manifestPageSize = domain.MaxPageLimit

// ContactLookup resolves a diver's contact details. repo.DiverRepo satisfies it.
type ContactLookup interface {
	GetContact(ctx context.Context, diverID uuid.UUID) (domain.DiverContact, error)
}

// ExportService assembles the passenger manifest of a trip.
type ExportService struct {
	trips    repo.TripRepo
	bookings repo.BookingRepo
	contacts ContactLookup
	authz    Authorizer
}

// NewExportService constructs an ExportService backed by the provided repos.
func NewExportService(trips repo.TripRepo, bookings repo.BookingRepo, contacts ContactLookup, authz Authorizer) *ExportService {
	return &ExportService{trips: trips, bookings: bookings, contacts: contacts, authz: authz}
}

// Manifest returns one row per active booking on the trip, oldest booking
// first. Cancelled and refunded bookings are left out. Trip owners and
// admins only.
func (s *ExportService) Manifest(ctx context.Context, actor domain.Actor, tripID uuid.UUID) ([]domain.ManifestRow, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
	}
	if err := authorize(ctx, s.authz, actor, CapViewTripBookings, Resource{Trip: &trip}); err != nil {
		return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
	}

	rows := []domain.ManifestRow{}
	for page := 1; ; page++ {
		bookings, _, err := s.bookings.ListByTrip(ctx, tripID, domain.PaginationParams{Page: page, Limit: manifestPageSize})
		if err != nil {
			return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
		}
		for _, b := range bookings {
			if !b.Status.Active() {
				continue
			}
			row, err := s.row(ctx, b)
			if err != nil {
				return nil, fmt.Errorf("service.ExportService.Manifest: %w", err)
			}
			rows = append(rows, row)
		}
		if len(bookings) < manifestPageSize {
			break
		}
	}
	return rows, nil
}

func (s *ExportService) row(ctx context.Context, b domain.Booking) (domain.ManifestRow, error) {
	row := domain.ManifestRow{
		BookingID:             b.ID,
		DiverID:               b.DiverID,
		NumberOfDivers:        b.NumberOfDivers,
		NeedsEquipment:        b.NeedsEquipment,
		Status:                b.Status,
		WaiverSignedAt:        b.WaiverSignedAt,
		ParentConsentRequired: b.ParentConsentRequired,
		ParentConsentGivenAt:  b.ParentConsentGivenAt,
		Total:                 b.Price.Total,
	}
	c, err := s.contacts.GetContact(ctx, b.DiverID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return domain.ManifestRow{}, err
	default:
		row.DiverName, row.DiverEmail = c.Name, c.Email
	}
	return row, nil
}
