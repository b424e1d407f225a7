package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geocodeProvider тестовый провайдер геокодирования со счетчиком вызовов
func geocodeProvider(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func geocodeOK(lat, lon float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"meta":{"code":200},"result":{"total":1,"items":[{"full_name":"Астана, Казахстан","point":{"lat":%f,"lon":%f}}]}}`, lat, lon)
	}
}

func TestGeocoderResolveCachesSuccess(t *testing.T) {
	srv, calls := geocodeProvider(t, geocodeOK(51.1282, 71.4304))
	g := NewGeocoder(srv.URL, "test-key", nil, NewMemoryCache(time.Minute, 16))

	loc, diag := g.Resolve(context.Background(), "Астана")
	require.Nil(t, diag)
	require.NotNil(t, loc)
	assert.InDelta(t, 51.1282, loc.Latitude, 1e-6)
	assert.InDelta(t, 71.4304, loc.Longitude, 1e-6)
	assert.EqualValues(t, 1, atomic.LoadInt64(calls))

	// Повторный запрос обслуживается из кэша без похода к провайдеру
	loc, diag = g.Resolve(context.Background(), "Астана")
	require.Nil(t, diag)
	require.NotNil(t, loc)
	assert.EqualValues(t, 1, atomic.LoadInt64(calls))
}

func TestGeocoderResolveFailureNotCached(t *testing.T) {
	srv, calls := geocodeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	g := NewGeocoder(srv.URL, "", nil, NewMemoryCache(time.Minute, 16))

	loc, diag := g.Resolve(context.Background(), "Неизвестно")
	assert.Nil(t, loc)
	require.NotNil(t, diag)
	assert.Equal(t, http.StatusInternalServerError, diag.StatusCode)

	// Неудача не отравляет кэш: следующий вызов идет к провайдеру снова
	loc, diag = g.Resolve(context.Background(), "Неизвестно")
	assert.Nil(t, loc)
	require.NotNil(t, diag)
	assert.EqualValues(t, 2, atomic.LoadInt64(calls))
}

func TestGeocoderResolveNoMatches(t *testing.T) {
	srv, calls := geocodeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"meta":{"code":200},"result":{"total":0,"items":[]}}`)
	})
	g := NewGeocoder(srv.URL, "", nil, NewMemoryCache(time.Minute, 16))

	loc, diag := g.Resolve(context.Background(), "ул. Несуществующая 1")
	assert.Nil(t, loc)
	require.NotNil(t, diag)
	assert.Equal(t, http.StatusOK, diag.StatusCode)
	assert.NotEmpty(t, diag.String())

	g.Resolve(context.Background(), "ул. Несуществующая 1")
	assert.EqualValues(t, 2, atomic.LoadInt64(calls), "пустой результат не должен кэшироваться")
}

func TestGeocoderResolveProviderDown(t *testing.T) {
	g := NewGeocoder("http://127.0.0.1:0", "", &http.Client{Timeout: time.Second}, NewMemoryCache(time.Minute, 16))

	loc, diag := g.Resolve(context.Background(), "Астана")
	assert.Nil(t, loc)
	require.NotNil(t, diag)
	assert.Error(t, diag.Err)
}

func TestGeocoderForwardsQueryAndKey(t *testing.T) {
	var gotQuery, gotKey string
	srv, _ := geocodeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("key")
		geocodeOK(43.238949, 76.889709)(w, r)
	})
	g := NewGeocoder(srv.URL, "secret", nil, NewMemoryCache(time.Minute, 16))

	loc, diag := g.Resolve(context.Background(), "Алматы")
	require.Nil(t, diag)
	require.NotNil(t, loc)
	assert.Equal(t, "Алматы", gotQuery)
	assert.Equal(t, "secret", gotKey)
}
