package geo

import (
	"context"
	"net/http"
	"testing"
	"time"

	"fleet-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	geoSrv, _ := geocodeProvider(t, geocodeOK(51.1282, 71.4304))
	routeSrv, _ := routeProvider(t, routeOK)

	geocoder := NewGeocoder(geoSrv.URL, "", nil, NewMemoryCache(time.Minute, 16))
	routes := NewRouteResolver(routeSrv.URL, "", nil, NewMemoryCache(time.Minute, 16))
	return NewPlanner(geocoder, routes)
}

func TestPlannerPlan(t *testing.T) {
	p := newTestPlanner(t)
	gen := p.Select()

	plan, err := p.Plan(context.Background(), gen, "Астана", "Караганда")
	require.NoError(t, err)
	require.Len(t, plan.Path, 3)
	assert.False(t, plan.Fallback)
	assert.Greater(t, plan.DistanceKm, 0.0)
}

func TestPlannerDiscardsStaleResolution(t *testing.T) {
	p := newTestPlanner(t)
	gen := p.Select()

	// Новый выбор обесценивает разрешение, начатое с прежним поколением
	p.Select()

	_, err := p.Plan(context.Background(), gen, "Астана", "Караганда")
	assert.ErrorIs(t, err, ErrStaleResolution)

	_, err = p.Plan(context.Background(), p.Select(), "Астана", "Караганда")
	assert.NoError(t, err, "актуальное поколение проходит")
}

func TestPlanOnceUnaffectedByOtherSelections(t *testing.T) {
	started := make(chan struct{}, 4)
	gate := make(chan struct{})
	geoSrv, _ := geocodeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-gate
		geocodeOK(51.1282, 71.4304)(w, r)
	})
	routeSrv, _ := routeProvider(t, routeOK)

	p := NewPlanner(
		NewGeocoder(geoSrv.URL, "", nil, NewMemoryCache(time.Minute, 16)),
		NewRouteResolver(routeSrv.URL, "", nil, NewMemoryCache(time.Minute, 16)),
	)

	type result struct {
		plan *Plan
		err  error
	}
	done := make(chan result, 1)
	go func() {
		plan, err := p.PlanOnce(context.Background(), "Астана", "Караганда")
		done <- result{plan, err}
	}()

	// Чужой выбор объявляется, пока идет одноразовое разрешение.
	// Одноразовое разрешение не привязано к поколению и обязано дойти
	// до конца.
	<-started
	p.Select()
	close(gate)

	res := <-done
	require.NoError(t, res.err)
	require.NotNil(t, res.plan)
	assert.False(t, res.plan.Fallback)
}

func TestPlannerGeocodeFailure(t *testing.T) {
	geoSrv, _ := geocodeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	routeSrv, _ := routeProvider(t, routeOK)

	p := NewPlanner(
		NewGeocoder(geoSrv.URL, "", nil, NewMemoryCache(time.Minute, 16)),
		NewRouteResolver(routeSrv.URL, "", nil, NewMemoryCache(time.Minute, 16)),
	)

	_, err := p.Plan(context.Background(), p.Select(), "Неизвестно", "Караганда")
	assert.ErrorIs(t, err, ErrGeocodeFailed)
}

func TestHaversineKm(t *testing.T) {
	// Расстояние от Астаны до Караганды, около 212 км по прямой
	dist := HaversineKm(astana, karaganda)
	assert.InDelta(t, 212, dist, 10)

	assert.Zero(t, HaversineKm(astana, astana))
}

func TestPathDistanceKm(t *testing.T) {
	assert.Zero(t, PathDistanceKm(nil))
	assert.Zero(t, PathDistanceKm([]models.Location{astana}))

	direct := PathDistanceKm([]models.Location{astana, karaganda})
	viaMidpoint := PathDistanceKm([]models.Location{astana, {Latitude: 50.5, Longitude: 72.2}, karaganda})
	assert.GreaterOrEqual(t, viaMidpoint, direct)
}
