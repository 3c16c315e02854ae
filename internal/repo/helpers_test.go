package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
	"github.com/reefline/divetrips/testutil"
)

// newTestTx opens a transaction against the test database. It is rolled
// back when the test finishes, giving free per-test isolation.
func newTestTx(t *testing.T) pgx.Tx {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})
	return tx
}

// newTestRepos binds every transactional repository to a rolled-back tx.
func newTestRepos(t *testing.T) (repo.Repos, pgx.Tx) {
	t.Helper()
	tx := newTestTx(t)
	return repo.NewRepos(tx), tx
}

// tripFixture returns a published trip with sensible defaults.
func tripFixture() domain.Trip {
	return domain.Trip{
		OwnerID:                   uuid.New(),
		Title:                     "Farasan Reef",
		DepartureTime:             time.Date(2030, 6, 1, 7, 0, 0, 0, time.UTC),
		MaxParticipants:           4,
		Status:                    domain.TripStatusPublished,
		PricePerPerson:            450,
		CancellationDeadlineHours: 24,
	}
}

func createTrip(t *testing.T, r repo.TripRepo, mutate func(tr *domain.Trip)) domain.Trip {
	t.Helper()
	in := tripFixture()
	if mutate != nil {
		mutate(&in)
	}
	got, err := r.Create(context.Background(), in)
	require.NoError(t, err)
	return got
}

func bookingFixture(tripID uuid.UUID) domain.Booking {
	return domain.Booking{
		TripID:         tripID,
		DiverID:        uuid.New(),
		Status:         domain.BookingStatusPending,
		NumberOfDivers: 1,
		Price: domain.PriceBreakdown{
			Base: 450, Conservation: 35, Insurance: 15, PlatformFee: 22.5, VAT: 70.88, Total: 593.38,
		},
	}
}
