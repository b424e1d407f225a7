package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"fleet-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo хранилище телеметрии в памяти. Проекция обновляется по тому же
// правилу, что и в Postgres: побеждает наибольший RecordedAt.
type fakeRepo struct {
	mu        sync.Mutex
	pings     []models.LocationPing
	latest    map[uint]models.VehicleLatestLocation
	lastLimit int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{latest: make(map[uint]models.VehicleLatestLocation)}
}

func (r *fakeRepo) InsertPing(ctx context.Context, ping *models.LocationPing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ping.ID = uint(len(r.pings) + 1)
	r.pings = append(r.pings, *ping)
	return nil
}

func (r *fakeRepo) UpsertLatest(ctx context.Context, ping *models.LocationPing) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.latest[ping.VehicleID]
	if ok && !ping.RecordedAt.After(current.RecordedAt) {
		return false, nil
	}
	r.latest[ping.VehicleID] = models.VehicleLatestLocation{
		VehicleID:  ping.VehicleID,
		Latitude:   ping.Latitude,
		Longitude:  ping.Longitude,
		SpeedKmh:   ping.SpeedKmh,
		RecordedAt: ping.RecordedAt,
	}
	return true, nil
}

func (r *fakeRepo) GetLatest(ctx context.Context, vehicleID uint) (*models.VehicleLatestLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.latest[vehicleID]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return &loc, nil
}

func (r *fakeRepo) GetLatestAll(ctx context.Context) ([]models.VehicleLatestLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.VehicleLatestLocation, 0, len(r.latest))
	for _, loc := range r.latest {
		out = append(out, loc)
	}
	return out, nil
}

func (r *fakeRepo) GetHistory(ctx context.Context, vehicleID uint, limit int) ([]models.LocationPing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	var out []models.LocationPing
	for i := len(r.pings) - 1; i >= 0 && len(out) < limit; i-- {
		if r.pings[i].VehicleID == vehicleID {
			out = append(out, r.pings[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) pingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pings)
}

func ping(vehicleID uint, lat, lon float64, at time.Time) *models.LocationPing {
	return &models.LocationPing{
		VehicleID:  vehicleID,
		Latitude:   lat,
		Longitude:  lon,
		SpeedKmh:   42,
		RecordedAt: at,
	}
}

func TestRecordUpdatesProjection(t *testing.T) {
	repo := newFakeRepo()
	var notified []models.VehicleLatestLocation
	store := NewStore(repo, nil, func(loc models.VehicleLatestLocation) {
		notified = append(notified, loc)
	})

	now := time.Now().UTC()
	updated, err := store.Record(context.Background(), ping(1, 51.1, 71.4, now))
	require.NoError(t, err)
	assert.True(t, updated)

	latest, err := store.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 51.1, latest.Latitude, 1e-9)
	require.Len(t, notified, 1)
}

func TestRecordOutOfOrderDoesNotRegress(t *testing.T) {
	repo := newFakeRepo()
	var notifications int
	store := NewStore(repo, nil, func(models.VehicleLatestLocation) { notifications++ })

	t2 := time.Now().UTC()
	t1 := t2.Add(-time.Minute)

	updated, err := store.Record(context.Background(), ping(1, 51.2, 71.5, t2))
	require.NoError(t, err)
	assert.True(t, updated)

	// Опоздавший пинг с меньшим RecordedAt попадает в журнал,
	// но проекцию не откатывает
	updated, err = store.Record(context.Background(), ping(1, 51.1, 71.4, t1))
	require.NoError(t, err)
	assert.False(t, updated)

	latest, err := store.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, t2, latest.RecordedAt)
	assert.InDelta(t, 51.2, latest.Latitude, 1e-9)

	assert.Equal(t, 2, repo.pingCount(), "журнал хранит оба пинга")
	assert.Equal(t, 1, notifications, "уведомление только при изменении проекции")
}

func TestRecordValidation(t *testing.T) {
	store := NewStore(newFakeRepo(), nil, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		ping *models.LocationPing
	}{
		{"без ТС", ping(0, 51.1, 71.4, time.Now())},
		{"широта вне диапазона", ping(1, 91, 71.4, time.Now())},
		{"долгота вне диапазона", ping(1, 51.1, -181, time.Now())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Record(ctx, tc.ping)
			assert.ErrorIs(t, err, ErrInvalidPing)
		})
	}
}

func TestRecordFillsRecordedAt(t *testing.T) {
	store := NewStore(newFakeRepo(), nil, nil)

	p := ping(1, 51.1, 71.4, time.Time{})
	_, err := store.Record(context.Background(), p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), p.RecordedAt, time.Minute)
}

func TestLatestAllOnePerVehicle(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, err := store.Record(ctx, ping(1, 51.0+float64(i), 71.4, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}
	_, err := store.Record(ctx, ping(2, 49.8, 73.1, now))
	require.NoError(t, err)

	all, err := store.LatestAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "не более одной записи на ТС")
}

func TestLatestUnknownVehicle(t *testing.T) {
	store := NewStore(newFakeRepo(), nil, nil)

	_, err := store.Latest(context.Background(), 404)
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestHistoryLimitClamping(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, nil, nil)
	ctx := context.Background()

	_, err := store.History(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, repo.lastLimit)

	_, err = store.History(ctx, 1, MaxHistoryLimit+500)
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryLimit, repo.lastLimit)

	_, err = store.History(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, repo.lastLimit)
}

func TestHistoryNewestFirst(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := store.Record(ctx, ping(1, 51.0, 71.4+float64(i)*0.01, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	history, err := store.History(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].RecordedAt.After(history[2].RecordedAt))
}
