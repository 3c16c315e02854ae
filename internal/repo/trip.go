package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/reefline/divetrips/internal/domain"
)

// TripRepo defines the persistence operations for Trips, including the
// capacity counters. The service layer depends on this interface, not the
// concrete Postgres implementation.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record (with DB-generated
	// id, created_at, and updated_at populated).
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip by its UUID primary key.
	// Returns domain.ErrNotFound if no trip with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// LockForUpdate reads a trip and holds a row lock on it until the
	// surrounding transaction ends. All waitlist mutations for a trip take
	// this lock first, which serializes them per trip.
	LockForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// ListPaged returns one page of trips ordered by departure_time ascending
	// and the total count.
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// Update overwrites the descriptive, pricing and policy fields of a trip.
	// Capacity counters and status are not touched. Returns domain.ErrNotFound
	// if no trip with that ID exists.
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// SetStatus changes the status of a trip.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error)

	// Reserve adds n participants in one conditional update guarded by
	// current_participants + n <= max_participants. ok is false, with no
	// change made, when the seats are not available.
	Reserve(ctx context.Context, id uuid.UUID, n int) (trip domain.Trip, ok bool, err error)

	// Release removes n participants, never going below zero.
	Release(ctx context.Context, id uuid.UUID, n int) (domain.Trip, error)

	// Recompute flips published/full to match the participant counters.
	Recompute(ctx context.Context, id uuid.UUID) (domain.Trip, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `
	id, owner_id, site_id, title, departure_time,
	max_participants, current_participants, status,
	min_age, max_age, min_certification_level, min_logged_dives,
	price_per_person, equipment_rental_price, conservation_fee_included,
	cancellation_deadline_hours, created_at, updated_at`

// statusCase is the SQL mirror of domain.Trip.RecomputedStatus, evaluated
// against the participant count expression cur.
func statusCase(cur string) string {
	return `CASE
			WHEN status = 'published' AND ` + cur + ` >= max_participants THEN 'full'
			WHEN status = 'full' AND ` + cur + ` < max_participants THEN 'published'
			ELSE status
		END`
}

// Create inserts a new trip row and returns the full persisted record.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		INSERT INTO trips (
			owner_id, site_id, title, departure_time, max_participants, status,
			min_age, max_age, min_certification_level, min_logged_dives,
			price_per_person, equipment_rental_price, conservation_fee_included,
			cancellation_deadline_hours)
		VALUES (
			@owner_id, @site_id, @title, @departure_time, @max_participants, @status,
			@min_age, @max_age, @min_certification_level, @min_logged_dives,
			@price_per_person, @equipment_rental_price, @conservation_fee_included,
			@cancellation_deadline_hours)
		RETURNING` + tripColumns

	args := tripArgs(trip)
	args["status"] = trip.Status

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT` + tripColumns + ` FROM trips WHERE id = @id`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// LockForUpdate retrieves a trip with SELECT ... FOR UPDATE.
func (r *pgTripRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT` + tripColumns + ` FROM trips WHERE id = @id FOR UPDATE`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.LockForUpdate: %w", err)
	}
	return result, nil
}

// ListPaged returns one page of trips, soonest departure first.
func (r *pgTripRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM trips`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: count: %w", err)
	}

	q := `SELECT` + tripColumns + `
		FROM trips
		ORDER BY departure_time ASC, id ASC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: %w", err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.ListPaged: rows: %w", err)
	}

	return trips, total, nil
}

// Update overwrites the mutable fields of a trip and returns the updated record.
// max_participants is guarded so it can never drop below the current count.
func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET site_id                     = @site_id,
		    title                       = @title,
		    departure_time              = @departure_time,
		    max_participants            = @max_participants,
		    min_age                     = @min_age,
		    max_age                     = @max_age,
		    min_certification_level     = @min_certification_level,
		    min_logged_dives            = @min_logged_dives,
		    price_per_person            = @price_per_person,
		    equipment_rental_price      = @equipment_rental_price,
		    conservation_fee_included   = @conservation_fee_included,
		    cancellation_deadline_hours = @cancellation_deadline_hours,
		    updated_at                  = now()
		WHERE id = @id
		RETURNING` + tripColumns

	args := tripArgs(trip)
	args["id"] = trip.ID

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	return result, nil
}

// SetStatus writes a new status.
func (r *pgTripRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET status = @status, updated_at = now()
		WHERE id = @id
		RETURNING` + tripColumns

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "status": status}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.SetStatus: %w", err)
	}
	return result, nil
}

// Reserve is a single atomic read-modify-write: the WHERE guard and the
// increment run in one statement, so two concurrent callers can never both
// observe the same free seat. The status flip happens in the same statement.
func (r *pgTripRepo) Reserve(ctx context.Context, id uuid.UUID, n int) (domain.Trip, bool, error) {
	q := `
		UPDATE trips
		SET current_participants = current_participants + @n,
		    status               = ` + statusCase("current_participants + @n") + `,
		    updated_at           = now()
		WHERE id = @id
		  AND current_participants + @n <= max_participants
		RETURNING` + tripColumns

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "n": n}))
	if err == nil {
		return result, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Trip{}, false, fmt.Errorf("repo.TripRepo.Reserve: %w", err)
	}

	// No row updated: either the trip is missing or it lacks capacity.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, false, fmt.Errorf("repo.TripRepo.Reserve: %w", err)
	}
	return current, false, nil
}

// Release frees n seats, clamping at zero.
func (r *pgTripRepo) Release(ctx context.Context, id uuid.UUID, n int) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET current_participants = GREATEST(current_participants - @n, 0),
		    status               = ` + statusCase("GREATEST(current_participants - @n, 0)") + `,
		    updated_at           = now()
		WHERE id = @id
		RETURNING` + tripColumns

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "n": n}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Release: %w", err)
	}
	return result, nil
}

// Recompute re-derives the published/full status from the counters.
func (r *pgTripRepo) Recompute(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET status     = ` + statusCase("current_participants") + `,
		    updated_at = now()
		WHERE id = @id
		RETURNING` + tripColumns

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Recompute: %w", err)
	}
	return result, nil
}

// tripArgs maps the writable trip columns to named arguments.
func tripArgs(t domain.Trip) pgx.NamedArgs {
	return pgx.NamedArgs{
		"owner_id":                    t.OwnerID,
		"site_id":                     t.SiteID, // nil becomes NULL
		"title":                       t.Title,
		"departure_time":              t.DepartureTime,
		"max_participants":            t.MaxParticipants,
		"min_age":                     t.Eligibility.MinAge,
		"max_age":                     t.Eligibility.MaxAge,
		"min_certification_level":     t.Eligibility.MinCertificationLevel,
		"min_logged_dives":            t.Eligibility.MinLoggedDives,
		"price_per_person":            t.PricePerPerson,
		"equipment_rental_price":      t.EquipmentRentalPrice,
		"conservation_fee_included":   t.ConservationFeeIncluded,
		"cancellation_deadline_hours": t.CancellationDeadlineHours,
	}
}

// scanTrip maps a single database row into a domain.Trip.
// It handles the UUID and nullable site_id conversions.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t       domain.Trip
		id      pgtype.UUID
		ownerID pgtype.UUID
		siteID  pgtype.UUID
	)

	err := s.Scan(
		&id, &ownerID, &siteID, &t.Title, &t.DepartureTime,
		&t.MaxParticipants, &t.CurrentParticipants, &t.Status,
		&t.Eligibility.MinAge, &t.Eligibility.MaxAge,
		&t.Eligibility.MinCertificationLevel, &t.Eligibility.MinLoggedDives,
		&t.PricePerPerson, &t.EquipmentRentalPrice, &t.ConservationFeeIncluded,
		&t.CancellationDeadlineHours, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Trip{}, mapError(err)
	}

	t.ID = uuid.UUID(id.Bytes)
	t.OwnerID = uuid.UUID(ownerID.Bytes)
	if siteID.Valid {
		sid := uuid.UUID(siteID.Bytes)
		t.SiteID = &sid
	}

	return t, nil
}
