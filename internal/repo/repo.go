// Package repo contains all database access logic for the dive trip API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reefline/divetrips/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner is satisfied by *pgxpool.Pool and pgx.Tx (nested begin = savepoint).
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repos bundles the repositories that take part in booking transactions,
// all bound to the same connection or transaction.
type Repos struct {
	Trips    TripRepo
	Bookings BookingRepo
	Waitlist WaitlistRepo
	Refunds  RefundRepo
}

// Transactor runs a function against Repos bound to a single transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// pgTransactor is the Postgres implementation of Transactor.
type pgTransactor struct {
	db beginner
}

// NewTransactor constructs a Transactor that opens transactions on db.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx, which turns each
// WithinTx call into a savepoint inside the outer test transaction.
func NewTransactor(db beginner) Transactor {
	return &pgTransactor{db: db}
}

// NewRepos binds every transactional repository to db.
func NewRepos(db db) Repos {
	return Repos{
		Trips:    NewTripRepo(db),
		Bookings: NewBookingRepo(db),
		Waitlist: NewWaitlistRepo(db),
		Refunds:  NewRefundRepo(db),
	}
}

// WithinTx begins a transaction, runs fn, then commits or rolls back.
func (t *pgTransactor) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	err := pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		return fn(NewRepos(tx))
	})
	if err != nil {
		return fmt.Errorf("repo.Transactor.WithinTx: %w", err)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan helpers
// to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// uniqueViolation is the SQLSTATE Postgres reports for unique index conflicts.
const uniqueViolation = "23505"

// mapError translates driver errors into domain sentinels:
// no rows becomes domain.ErrNotFound, a unique violation becomes
// domain.ErrConflict. Anything else is returned unchanged.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	}
	return err
}
