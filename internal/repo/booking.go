package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/reefline/divetrips/internal/domain"
)

// BookingRepo defines the persistence operations for Bookings.
type BookingRepo interface {
	// Create inserts a new booking. Returns domain.ErrConflict if the diver
	// already holds an active booking on the trip.
	Create(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// GetByID retrieves a single booking. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// GetActive returns the diver's active (not cancelled or refunded) booking
	// on the trip, or domain.ErrNotFound.
	GetActive(ctx context.Context, tripID, diverID uuid.UUID) (domain.Booking, error)

	// ListByTrip returns one page of a trip's bookings, oldest first, and the total.
	ListByTrip(ctx context.Context, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error)

	// ListByDiver returns every booking made by the diver, newest first.
	ListByDiver(ctx context.Context, diverID uuid.UUID) ([]domain.Booking, error)

	// Update overwrites the mutable fields of a booking.
	// Returns domain.ErrNotFound if the booking does not exist.
	Update(ctx context.Context, b domain.Booking) (domain.Booking, error)
}

// pgBookingRepo is the Postgres implementation of BookingRepo.
type pgBookingRepo struct {
	db db
}

// NewBookingRepo constructs a BookingRepo backed by the provided db connection.
func NewBookingRepo(db db) BookingRepo {
	return &pgBookingRepo{db: db}
}

const bookingColumns = `
	id, trip_id, diver_id, status, number_of_divers, needs_equipment, special_requests,
	base_price, equipment_price, conservation_fee, insurance_fee, platform_fee,
	vat_amount, discount_amount, total_amount,
	parent_consent_required, parent_consent_given_at, waiver_signed_at, checked_in_at,
	payment_reference, cancelled_at, cancelled_by, cancellation_reason, refund_amount,
	created_at, updated_at`

// Create inserts a booking row and returns the persisted record.
func (r *pgBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	q := `
		INSERT INTO bookings (
			trip_id, diver_id, status, number_of_divers, needs_equipment, special_requests,
			base_price, equipment_price, conservation_fee, insurance_fee, platform_fee,
			vat_amount, discount_amount, total_amount, parent_consent_required)
		VALUES (
			@trip_id, @diver_id, @status, @number_of_divers, @needs_equipment, @special_requests,
			@base_price, @equipment_price, @conservation_fee, @insurance_fee, @platform_fee,
			@vat_amount, @discount_amount, @total_amount, @parent_consent_required)
		RETURNING` + bookingColumns

	args := bookingArgs(b)
	args["trip_id"] = b.TripID
	args["diver_id"] = b.DiverID

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a booking by primary key.
func (r *pgBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	q := `SELECT` + bookingColumns + ` FROM bookings WHERE id = @id`

	result, err := scanBooking(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetActive looks up the diver's active booking on a trip.
func (r *pgBookingRepo) GetActive(ctx context.Context, tripID, diverID uuid.UUID) (domain.Booking, error) {
	q := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE trip_id = @trip_id
		  AND diver_id = @diver_id
		  AND NOT (status = ANY(@inactive))`

	args := pgx.NamedArgs{
		"trip_id":  tripID,
		"diver_id": diverID,
		"inactive": statusStrings(domain.InactiveBookingStatuses),
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetActive: %w", err)
	}
	return result, nil
}

// ListByTrip returns one page of bookings for a trip.
func (r *pgBookingRepo) ListByTrip(ctx context.Context, tripID uuid.UUID, p domain.PaginationParams) ([]domain.Booking, int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE trip_id = @trip_id`,
		pgx.NamedArgs{"trip_id": tripID}).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.ListByTrip: count: %w", err)
	}

	q := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE trip_id = @trip_id
		ORDER BY created_at ASC, id ASC
		LIMIT @limit OFFSET @offset`

	bookings, err := r.list(ctx, q, pgx.NamedArgs{"trip_id": tripID, "limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.BookingRepo.ListByTrip: %w", err)
	}
	return bookings, total, nil
}

// ListByDiver returns all bookings for a diver.
func (r *pgBookingRepo) ListByDiver(ctx context.Context, diverID uuid.UUID) ([]domain.Booking, error) {
	q := `SELECT` + bookingColumns + `
		FROM bookings
		WHERE diver_id = @diver_id
		ORDER BY created_at DESC, id ASC`

	bookings, err := r.list(ctx, q, pgx.NamedArgs{"diver_id": diverID})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListByDiver: %w", err)
	}
	return bookings, nil
}

// Update overwrites the mutable fields of a booking.
func (r *pgBookingRepo) Update(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	q := `
		UPDATE bookings
		SET status                  = @status,
		    number_of_divers        = @number_of_divers,
		    needs_equipment         = @needs_equipment,
		    special_requests        = @special_requests,
		    base_price              = @base_price,
		    equipment_price         = @equipment_price,
		    conservation_fee        = @conservation_fee,
		    insurance_fee           = @insurance_fee,
		    platform_fee            = @platform_fee,
		    vat_amount              = @vat_amount,
		    discount_amount         = @discount_amount,
		    total_amount            = @total_amount,
		    parent_consent_required = @parent_consent_required,
		    parent_consent_given_at = @parent_consent_given_at,
		    waiver_signed_at        = @waiver_signed_at,
		    checked_in_at           = @checked_in_at,
		    payment_reference       = @payment_reference,
		    cancelled_at            = @cancelled_at,
		    cancelled_by            = @cancelled_by,
		    cancellation_reason     = @cancellation_reason,
		    refund_amount           = @refund_amount,
		    updated_at              = now()
		WHERE id = @id
		RETURNING` + bookingColumns

	args := bookingArgs(b)
	args["id"] = b.ID
	args["parent_consent_given_at"] = b.ParentConsentGivenAt
	args["waiver_signed_at"] = b.WaiverSignedAt
	args["checked_in_at"] = b.CheckedInAt
	args["payment_reference"] = b.PaymentReference
	args["cancelled_at"] = b.CancelledAt
	args["cancelled_by"] = b.CancelledBy
	args["cancellation_reason"] = b.CancellationReason
	args["refund_amount"] = b.RefundAmount

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgBookingRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return bookings, nil
}

// bookingArgs maps the columns shared by Create and Update.
func bookingArgs(b domain.Booking) pgx.NamedArgs {
	return pgx.NamedArgs{
		"status":                  b.Status,
		"number_of_divers":        b.NumberOfDivers,
		"needs_equipment":         b.NeedsEquipment,
		"special_requests":        b.SpecialRequests,
		"base_price":              b.Price.Base,
		"equipment_price":         b.Price.Equipment,
		"conservation_fee":        b.Price.Conservation,
		"insurance_fee":           b.Price.Insurance,
		"platform_fee":            b.Price.PlatformFee,
		"vat_amount":              b.Price.VAT,
		"discount_amount":         b.Price.Discount,
		"total_amount":            b.Price.Total,
		"parent_consent_required": b.ParentConsentRequired,
	}
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// scanBooking maps a single database row into a domain.Booking.
func scanBooking(s scanner) (domain.Booking, error) {
	var (
		b           domain.Booking
		id          pgtype.UUID
		tripID      pgtype.UUID
		diverID     pgtype.UUID
		cancelledBy pgtype.UUID
	)

	err := s.Scan(
		&id, &tripID, &diverID, &b.Status, &b.NumberOfDivers, &b.NeedsEquipment, &b.SpecialRequests,
		&b.Price.Base, &b.Price.Equipment, &b.Price.Conservation, &b.Price.Insurance, &b.Price.PlatformFee,
		&b.Price.VAT, &b.Price.Discount, &b.Price.Total,
		&b.ParentConsentRequired, &b.ParentConsentGivenAt, &b.WaiverSignedAt, &b.CheckedInAt,
		&b.PaymentReference, &b.CancelledAt, &cancelledBy, &b.CancellationReason, &b.RefundAmount,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}

	b.ID = uuid.UUID(id.Bytes)
	b.TripID = uuid.UUID(tripID.Bytes)
	b.DiverID = uuid.UUID(diverID.Bytes)
	if cancelledBy.Valid {
		by := uuid.UUID(cancelledBy.Bytes)
		b.CancelledBy = &by
	}

	return b, nil
}
