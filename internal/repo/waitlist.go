package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/reefline/divetrips/internal/domain"
)

// WaitlistRepo defines the persistence operations for waitlist entries.
// Callers must hold the trip's row lock (TripRepo.LockForUpdate) in the same
// transaction before calling Append or Remove; positions are computed from
// the current rows and are only dense under that serialization.
type WaitlistRepo interface {
	// Append adds the diver at max(position)+1, or 1 for an empty list.
	// Returns domain.ErrConflict if the diver is already queued for the trip.
	Append(ctx context.Context, tripID, diverID uuid.UUID) (domain.WaitlistEntry, error)

	// Get returns the diver's entry for the trip, or domain.ErrNotFound.
	Get(ctx context.Context, tripID, diverID uuid.UUID) (domain.WaitlistEntry, error)

	// Head returns the entry at position 1, or domain.ErrNotFound when empty.
	Head(ctx context.Context, tripID uuid.UUID) (domain.WaitlistEntry, error)

	// ListByTrip returns the trip's entries ordered by position.
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.WaitlistEntry, error)

	// Remove deletes the diver's entry and renumbers the remaining entries
	// 1..N preserving their order. Returns domain.ErrNotFound if absent.
	Remove(ctx context.Context, tripID, diverID uuid.UUID) error

	// MarkNotified stamps the promotion time and its expiry on an entry.
	MarkNotified(ctx context.Context, id uuid.UUID, notifiedAt, expiresAt time.Time) (domain.WaitlistEntry, error)

	// ExpiredHeads returns the IDs of trips whose head entry's promotion
	// expired at or before now.
	ExpiredHeads(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// pgWaitlistRepo is the Postgres implementation of WaitlistRepo.
type pgWaitlistRepo struct {
	db db
}

// NewWaitlistRepo constructs a WaitlistRepo backed by the provided db connection.
func NewWaitlistRepo(db db) WaitlistRepo {
	return &pgWaitlistRepo{db: db}
}

const waitlistColumns = `
	id, trip_id, diver_id, position, notified_at, expires_at, created_at`

// Append computes the next position inside the INSERT itself.
func (r *pgWaitlistRepo) Append(ctx context.Context, tripID, diverID uuid.UUID) (domain.WaitlistEntry, error) {
	q := `
		INSERT INTO waitlist_entries (trip_id, diver_id, position)
		SELECT @trip_id, @diver_id, COALESCE(MAX(position), 0) + 1
		FROM waitlist_entries
		WHERE trip_id = @trip_id
		RETURNING` + waitlistColumns

	result, err := scanWaitlistEntry(r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "diver_id": diverID}))
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("repo.WaitlistRepo.Append: %w", err)
	}
	return result, nil
}

// Get looks up a diver's entry on a trip.
func (r *pgWaitlistRepo) Get(ctx context.Context, tripID, diverID uuid.UUID) (domain.WaitlistEntry, error) {
	q := `SELECT` + waitlistColumns + `
		FROM waitlist_entries
		WHERE trip_id = @trip_id AND diver_id = @diver_id`

	result, err := scanWaitlistEntry(r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "diver_id": diverID}))
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("repo.WaitlistRepo.Get: %w", err)
	}
	return result, nil
}

// Head returns the first entry in the queue.
func (r *pgWaitlistRepo) Head(ctx context.Context, tripID uuid.UUID) (domain.WaitlistEntry, error) {
	q := `SELECT` + waitlistColumns + `
		FROM waitlist_entries
		WHERE trip_id = @trip_id
		ORDER BY position ASC
		LIMIT 1`

	result, err := scanWaitlistEntry(r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID}))
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("repo.WaitlistRepo.Head: %w", err)
	}
	return result, nil
}

// ListByTrip returns the whole queue for a trip.
func (r *pgWaitlistRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.WaitlistEntry, error) {
	q := `SELECT` + waitlistColumns + `
		FROM waitlist_entries
		WHERE trip_id = @trip_id
		ORDER BY position ASC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.WaitlistRepo.ListByTrip: %w", err)
	}
	defer rows.Close()

	var entries []domain.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.WaitlistRepo.ListByTrip: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.WaitlistRepo.ListByTrip: rows: %w", err)
	}
	return entries, nil
}

// Remove deletes an entry then compacts the remaining positions.
// The (trip_id, position) unique constraint is deferred, so the renumbering
// UPDATE may pass through transient duplicates.
func (r *pgWaitlistRepo) Remove(ctx context.Context, tripID, diverID uuid.UUID) error {
	const del = `DELETE FROM waitlist_entries WHERE trip_id = @trip_id AND diver_id = @diver_id`

	tag, err := r.db.Exec(ctx, del, pgx.NamedArgs{"trip_id": tripID, "diver_id": diverID})
	if err != nil {
		return fmt.Errorf("repo.WaitlistRepo.Remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.WaitlistRepo.Remove: %w", domain.ErrNotFound)
	}

	const renumber = `
		UPDATE waitlist_entries w
		SET position = ranked.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position ASC) AS rn
			FROM waitlist_entries
			WHERE trip_id = @trip_id
		) AS ranked
		WHERE w.id = ranked.id
		  AND w.position <> ranked.rn`

	if _, err := r.db.Exec(ctx, renumber, pgx.NamedArgs{"trip_id": tripID}); err != nil {
		return fmt.Errorf("repo.WaitlistRepo.Remove: renumber: %w", err)
	}
	return nil
}

// MarkNotified records that the entry was offered a seat.
func (r *pgWaitlistRepo) MarkNotified(ctx context.Context, id uuid.UUID, notifiedAt, expiresAt time.Time) (domain.WaitlistEntry, error) {
	q := `
		UPDATE waitlist_entries
		SET notified_at = @notified_at, expires_at = @expires_at
		WHERE id = @id
		RETURNING` + waitlistColumns

	args := pgx.NamedArgs{"id": id, "notified_at": notifiedAt, "expires_at": expiresAt}
	result, err := scanWaitlistEntry(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.WaitlistEntry{}, fmt.Errorf("repo.WaitlistRepo.MarkNotified: %w", err)
	}
	return result, nil
}

// ExpiredHeads finds trips whose promoted head has run out of time.
func (r *pgWaitlistRepo) ExpiredHeads(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const q = `
		SELECT trip_id
		FROM waitlist_entries
		WHERE position = 1
		  AND expires_at IS NOT NULL
		  AND expires_at <= @now
		ORDER BY expires_at ASC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"now": now})
	if err != nil {
		return nil, fmt.Errorf("repo.WaitlistRepo.ExpiredHeads: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repo.WaitlistRepo.ExpiredHeads: scan: %w", err)
		}
		ids = append(ids, uuid.UUID(id.Bytes))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.WaitlistRepo.ExpiredHeads: rows: %w", err)
	}
	return ids, nil
}

// scanWaitlistEntry maps a single database row into a domain.WaitlistEntry.
func scanWaitlistEntry(s scanner) (domain.WaitlistEntry, error) {
	var (
		e       domain.WaitlistEntry
		id      pgtype.UUID
		tripID  pgtype.UUID
		diverID pgtype.UUID
	)

	if err := s.Scan(&id, &tripID, &diverID, &e.Position, &e.NotifiedAt, &e.ExpiresAt, &e.CreatedAt); err != nil {
		return domain.WaitlistEntry{}, mapError(err)
	}

	e.ID = uuid.UUID(id.Bytes)
	e.TripID = uuid.UUID(tripID.Bytes)
	e.DiverID = uuid.UUID(diverID.Bytes)
	return e, nil
}
