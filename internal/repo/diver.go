package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/reefline/divetrips/internal/domain"
)

// DiverRepo reads the diver profile data owned by the profile subsystem.
// This service never writes divers or certifications.
type DiverRepo interface {
	// GetProfile returns the diver's date of birth, logged dives and every
	// certification on file. Returns domain.ErrNotFound if no profile exists.
	GetProfile(ctx context.Context, diverID uuid.UUID) (domain.DiverProfile, error)

	// GetContact returns how the diver can be reached.
	// Returns domain.ErrNotFound if no profile exists.
	GetContact(ctx context.Context, diverID uuid.UUID) (domain.DiverContact, error)
}

// pgDiverRepo is the Postgres implementation of DiverRepo.
type pgDiverRepo struct {
	db db
}

// NewDiverRepo constructs a DiverRepo backed by the provided db connection.
func NewDiverRepo(db db) DiverRepo {
	return &pgDiverRepo{db: db}
}

// GetProfile loads the diver row and its certifications.
func (r *pgDiverRepo) GetProfile(ctx context.Context, diverID uuid.UUID) (domain.DiverProfile, error) {
	const q = `
		SELECT date_of_birth, total_logged_dives
		FROM divers
		WHERE id = @id`

	var (
		dob     pgtype.Date
		profile = domain.DiverProfile{DiverID: diverID}
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": diverID}).Scan(&dob, &profile.TotalLoggedDives)
	if err != nil {
		return domain.DiverProfile{}, fmt.Errorf("repo.DiverRepo.GetProfile: %w", mapError(err))
	}
	if dob.Valid {
		d := dob.Time
		profile.DateOfBirth = &d
	}

	const certs = `
		SELECT level, agency, verification_status
		FROM diver_certifications
		WHERE diver_id = @id
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, certs, pgx.NamedArgs{"id": diverID})
	if err != nil {
		return domain.DiverProfile{}, fmt.Errorf("repo.DiverRepo.GetProfile: certifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Certification
		if err := rows.Scan(&c.Level, &c.Agency, &c.VerificationStatus); err != nil {
			return domain.DiverProfile{}, fmt.Errorf("repo.DiverRepo.GetProfile: scan: %w", err)
		}
		profile.Certifications = append(profile.Certifications, c)
	}
	if err := rows.Err(); err != nil {
		return domain.DiverProfile{}, fmt.Errorf("repo.DiverRepo.GetProfile: rows: %w", err)
	}

	return profile, nil
}

// GetContact loads the notification channels for a diver.
func (r *pgDiverRepo) GetContact(ctx context.Context, diverID uuid.UUID) (domain.DiverContact, error) {
	const q = `
		SELECT name, email, telegram_chat_id
		FROM divers
		WHERE id = @id`

	c := domain.DiverContact{DiverID: diverID}
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": diverID}).Scan(&c.Name, &c.Email, &c.TelegramChatID)
	if err != nil {
		return domain.DiverContact{}, fmt.Errorf("repo.DiverRepo.GetContact: %w", mapError(err))
	}
	return c, nil
}
