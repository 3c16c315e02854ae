package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/reefline/divetrips/internal/domain"
)

// RefundRepo is the outbox the payment subsystem reads refund instructions
// from. Writing it in the same transaction as the cancellation means a
// refund is recorded if and only if the cancellation commits.
type RefundRepo interface {
	// Enqueue records a refund instruction for a cancelled booking.
	Enqueue(ctx context.Context, req domain.RefundRequest) (domain.RefundRequest, error)

	// ListByBooking returns the refund instructions recorded for a booking.
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.RefundRequest, error)
}

// pgRefundRepo is the Postgres implementation of RefundRepo.
type pgRefundRepo struct {
	db db
}

// NewRefundRepo constructs a RefundRepo backed by the provided db connection.
func NewRefundRepo(db db) RefundRepo {
	return &pgRefundRepo{db: db}
}

// Enqueue inserts a refund_requests row.
func (r *pgRefundRepo) Enqueue(ctx context.Context, req domain.RefundRequest) (domain.RefundRequest, error) {
	const q = `
		INSERT INTO refund_requests (booking_id, amount, reason)
		VALUES (@booking_id, @amount, @reason)
		RETURNING id, booking_id, amount, reason, created_at`

	args := pgx.NamedArgs{"booking_id": req.BookingID, "amount": req.Amount, "reason": req.Reason}
	result, err := scanRefund(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.RefundRequest{}, fmt.Errorf("repo.RefundRepo.Enqueue: %w", err)
	}
	return result, nil
}

// ListByBooking returns refund rows for a booking, oldest first.
func (r *pgRefundRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.RefundRequest, error) {
	const q = `
		SELECT id, booking_id, amount, reason, created_at
		FROM refund_requests
		WHERE booking_id = @booking_id
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"booking_id": bookingID})
	if err != nil {
		return nil, fmt.Errorf("repo.RefundRepo.ListByBooking: %w", err)
	}
	defer rows.Close()

	var out []domain.RefundRequest
	for rows.Next() {
		req, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.RefundRepo.ListByBooking: scan: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RefundRepo.ListByBooking: rows: %w", err)
	}
	return out, nil
}

func scanRefund(s scanner) (domain.RefundRequest, error) {
	var (
		req       domain.RefundRequest
		id        pgtype.UUID
		bookingID pgtype.UUID
	)
	if err := s.Scan(&id, &bookingID, &req.Amount, &req.Reason, &req.CreatedAt); err != nil {
		return domain.RefundRequest{}, mapError(err)
	}
	req.ID = uuid.UUID(id.Bytes)
	req.BookingID = uuid.UUID(bookingID.Bytes)
	return req, nil
}
