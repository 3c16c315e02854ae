package repo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/repo"
	"github.com/reefline/divetrips/testutil"
)

func TestTripRepo_Create(t *testing.T) {
	r, _ := newTestRepos(t)
	ctx := context.Background()

	input := tripFixture()
	input.EquipmentRentalPrice = ptr(120.0)
	input.Eligibility = domain.EligibilityPolicy{MinAge: 12, MaxAge: ptr(60), MinCertificationLevel: "Open Water", MinLoggedDives: 10}

	got, err := r.Trips.Create(ctx, input)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "ID should be DB-generated UUID")
	assert.Equal(t, input.Title, got.Title)
	assert.Equal(t, input.OwnerID, got.OwnerID)
	assert.True(t, got.DepartureTime.Equal(input.DepartureTime), "DepartureTime mismatch")
	assert.Zero(t, got.CurrentParticipants)
	assert.Equal(t, input.Eligibility, got.Eligibility)
	require.NotNil(t, got.EquipmentRentalPrice)
	assert.Equal(t, 120.0, *got.EquipmentRentalPrice)
	assert.Nil(t, got.SiteID)
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set by DB")
}

func TestTripRepo_GetByID_NotFound(t *testing.T) {
	r, _ := newTestRepos(t)

	_, err := r.Trips.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_ListPaged(t *testing.T) {
	r, _ := newTestRepos(t)
	ctx := context.Background()

	later := createTrip(t, r.Trips, func(tr *domain.Trip) { tr.DepartureTime = tr.DepartureTime.Add(48 * time.Hour) })
	sooner := createTrip(t, r.Trips, nil)

	trips, total, err := r.Trips.ListPaged(ctx, domain.PaginationParams{Page: 1, Limit: 100})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(2))
	var order []uuid.UUID
	for _, tr := range trips {
		if tr.ID == sooner.ID || tr.ID == later.ID {
			order = append(order, tr.ID)
		}
	}
	assert.Equal(t, []uuid.UUID{sooner.ID, later.ID}, order, "trips are ordered by departure")
}

func TestTripRepo_Update(t *testing.T) {
	r, _ := newTestRepos(t)
	ctx := context.Background()
	created := createTrip(t, r.Trips, nil)

	created.Title = "Farasan Reef (night dive)"
	created.MaxParticipants = 6
	created.Status = domain.TripStatusCancelled // ignored by Update
	got, err := r.Trips.Update(ctx, created)

	require.NoError(t, err)
	assert.Equal(t, "Farasan Reef (night dive)", got.Title)
	assert.Equal(t, 6, got.MaxParticipants)
	assert.Equal(t, domain.TripStatusPublished, got.Status)
}

func TestTripRepo_Update_NotFound(t *testing.T) {
	r, _ := newTestRepos(t)
	in := tripFixture()
	in.ID = uuid.New()

	_, err := r.Trips.Update(context.Background(), in)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_ReserveRelease(t *testing.T) {
	r, _ := newTestRepos(t)
	ctx := context.Background()
	trip := createTrip(t, r.Trips, nil)

	got, ok, err := r.Trips.Reserve(ctx, trip.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.CurrentParticipants)
	assert.Equal(t, domain.TripStatusPublished, got.Status)

	got, ok, err = r.Trips.Reserve(ctx, trip.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "only one seat left")
	assert.Equal(t, 3, got.CurrentParticipants, "a failed reservation changes nothing")

	got, ok, err = r.Trips.Reserve(ctx, trip.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.TripStatusFull, got.Status)

	got, err = r.Trips.Release(ctx, trip.ID, 10)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentParticipants, "release clamps at zero")
	assert.Equal(t, domain.TripStatusPublished, got.Status)

	_, _, err = r.Trips.Reserve(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_SetStatusAndRecompute(t *testing.T) {
	r, _ := newTestRepos(t)
	ctx := context.Background()
	trip := createTrip(t, r.Trips, func(tr *domain.Trip) { tr.Status = domain.TripStatusDraft; tr.MaxParticipants = 1 })

	_, ok, err := r.Trips.Reserve(ctx, trip.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := r.Trips.SetStatus(ctx, trip.ID, domain.TripStatusPublished)
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusPublished, got.Status)

	got, err = r.Trips.Recompute(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusFull, got.Status)
}

// TestTripRepo_Reserve_Concurrent commits real rows, so it cleans up after
// itself instead of relying on a rolled-back transaction.
func TestTripRepo_Reserve_Concurrent(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()
	trips := repo.NewTripRepo(pool)
	trip := createTrip(t, trips, nil)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM trips WHERE id = $1`, trip.ID)
	})

	const callers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := trips.Reserve(ctx, trip.ID, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := trips.GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, trip.MaxParticipants, granted)
	assert.Equal(t, trip.MaxParticipants, got.CurrentParticipants)
	assert.Equal(t, domain.TripStatusFull, got.Status)
}

func ptr[T any](v T) *T { return &v }
