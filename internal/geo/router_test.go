package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fleet-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	astana    = models.Location{Latitude: 51.1282, Longitude: 71.4304}
	karaganda = models.Location{Latitude: 49.8047, Longitude: 73.1094}
)

func routeProvider(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func routeOK(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"meta":{"code":200},"result":{"routes":[{"distance":211000,"duration":9600,"points":[{"lat":51.1282,"lon":71.4304},{"lat":50.5,"lon":72.2},{"lat":49.8047,"lon":73.1094}]}]}}`)
}

func TestRouteResolverCachesSuccess(t *testing.T) {
	srv, calls := routeProvider(t, routeOK)
	r := NewRouteResolver(srv.URL, "test-key", nil, NewMemoryCache(time.Minute, 16))

	path, fallback := r.Resolve(context.Background(), astana, karaganda)
	assert.False(t, fallback)
	require.Len(t, path, 3)
	assert.EqualValues(t, 1, atomic.LoadInt64(calls))

	path, fallback = r.Resolve(context.Background(), astana, karaganda)
	assert.False(t, fallback)
	assert.Len(t, path, 3)
	assert.EqualValues(t, 1, atomic.LoadInt64(calls), "повторный запрос берется из кэша")
}

func TestRouteResolverFallbackCached(t *testing.T) {
	srv, calls := routeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r := NewRouteResolver(srv.URL, "", nil, NewMemoryCache(time.Minute, 16))

	path, fallback := r.Resolve(context.Background(), astana, karaganda)
	assert.True(t, fallback)
	require.Len(t, path, 2, "fallback это прямой отрезок между точками")
	assert.Equal(t, astana, path[0])
	assert.Equal(t, karaganda, path[1])

	// Fallback тоже лежит в кэше: провайдер не беспокоится повторно
	path, fallback = r.Resolve(context.Background(), astana, karaganda)
	assert.True(t, fallback)
	assert.Len(t, path, 2)
	assert.EqualValues(t, 1, atomic.LoadInt64(calls))
}

func TestRouteResolverEmptyRouteFallsBack(t *testing.T) {
	srv, _ := routeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"meta":{"code":200},"result":{"routes":[]}}`)
	})
	r := NewRouteResolver(srv.URL, "", nil, NewMemoryCache(time.Minute, 16))

	path, fallback := r.Resolve(context.Background(), astana, karaganda)
	assert.True(t, fallback)
	assert.Len(t, path, 2)
}

func TestRouteCacheKeyExactPair(t *testing.T) {
	srv, calls := routeProvider(t, routeOK)
	r := NewRouteResolver(srv.URL, "", nil, NewMemoryCache(time.Minute, 16))

	// Пары, различающиеся за пределами шестого знака, не должны
	// склеиваться в один ключ кэша
	nearAstana := models.Location{Latitude: astana.Latitude + 1e-8, Longitude: astana.Longitude}
	r.Resolve(context.Background(), astana, karaganda)
	r.Resolve(context.Background(), nearAstana, karaganda)
	assert.EqualValues(t, 2, atomic.LoadInt64(calls))

	assert.NotEqual(t, routeCacheKey(astana, karaganda), routeCacheKey(nearAstana, karaganda))
}

func TestRouteResolverDirectionalKey(t *testing.T) {
	srv, calls := routeProvider(t, routeOK)
	r := NewRouteResolver(srv.URL, "", nil, NewMemoryCache(time.Minute, 16))

	r.Resolve(context.Background(), astana, karaganda)
	r.Resolve(context.Background(), karaganda, astana)

	// У обратного направления другой ключ кэша
	assert.EqualValues(t, 2, atomic.LoadInt64(calls))
}
