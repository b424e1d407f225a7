package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fleet-backend/internal/middleware"
	"fleet-backend/internal/models"

	"golang.org/x/sync/singleflight"
)

// RouteResponse ответ провайдера маршрутизации: геометрия пути
type RouteResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Result struct {
		Routes []struct {
			Distance int `json:"distance"`
			Duration int `json:"duration"`
			Points   []struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"points"`
		} `json:"routes"`
	} `json:"result"`
}

// routeCacheEntry то, что лежит в кэше маршрутов. Fallback сохраняется,
// чтобы повторный запрос той же пары точек не ходил к провайдеру.
type routeCacheEntry struct {
	Points   []models.Location `json:"points"`
	Fallback bool              `json:"fallback"`
}

// RouteResolver разрешает пару координат в упорядоченную
// последовательность точек пути. Кэш направленный, ключом служит точная
// пара координат. В отличие от геокодера кэшируется КАЖДАЯ попытка
// разрешения, включая прямолинейный fallback: повторный просмотр того же
// плеча обходится в O(1) ценой невозможности ретрая до истечения TTL.
type RouteResolver struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   Cache
	group   singleflight.Group
}

func NewRouteResolver(baseURL, apiKey string, httpClient *http.Client, cache Cache) *RouteResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RouteResolver{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		cache:   cache,
	}
}

// routeCacheKey кодирует координаты без потери точности: округление
// до фиксированного числа знаков склеивало бы разные пары в один ключ
func routeCacheKey(from, to models.Location) string {
	return "route:" + coord(from.Latitude) + ":" + coord(from.Longitude) +
		":" + coord(to.Latitude) + ":" + coord(to.Longitude)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Resolve возвращает путь между двумя координатами и признак того, что
// путь является прямолинейным fallback. Сбой провайдера никогда не
// поднимается наверх: вернется двухточечный отрезок [from, to].
func (r *RouteResolver) Resolve(ctx context.Context, from, to models.Location) ([]models.Location, bool) {
	cacheKey := routeCacheKey(from, to)

	var cached routeCacheEntry
	found, err := r.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		log.Printf("Ошибка при чтении кэша маршрутов: %v", err)
	} else if found {
		middleware.TrackGeoRequest("route", "ok", true, 0)
		return cached.Points, cached.Fallback
	}

	v, _, _ := r.group.Do(cacheKey, func() (interface{}, error) {
		return r.lookup(ctx, from, to), nil
	})
	entry := v.(routeCacheEntry)
	return entry.Points, entry.Fallback
}

func (r *RouteResolver) lookup(ctx context.Context, from, to models.Location) routeCacheEntry {
	start := time.Now()

	entry, ok := r.request(ctx, from, to)
	if !ok {
		// Прямолинейный fallback кэшируется наравне с ответом провайдера
		entry = routeCacheEntry{
			Points:   []models.Location{from, to},
			Fallback: true,
		}
		middleware.TrackGeoRequest("route", "fallback", false, time.Since(start))
	} else {
		middleware.TrackGeoRequest("route", "ok", false, time.Since(start))
	}

	if err := r.cache.Set(ctx, routeCacheKey(from, to), entry); err != nil {
		log.Printf("Ошибка при сохранении маршрута в кэш: %v", err)
	}
	return entry
}

func (r *RouteResolver) request(ctx context.Context, from, to models.Location) (routeCacheEntry, bool) {
	params := url.Values{}
	if r.apiKey != "" {
		params.Add("key", r.apiKey)
	}
	params.Add("point1", fmt.Sprintf("%f,%f", from.Latitude, from.Longitude))
	params.Add("point2", fmt.Sprintf("%f,%f", to.Latitude, to.Longitude))
	params.Add("type", "car")

	reqURL := fmt.Sprintf("%s/directions?%s", r.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return routeCacheEntry{}, false
	}

	resp, err := r.http.Do(req)
	if err != nil {
		log.Printf("Ошибка при запросе маршрута: %v", err)
		return routeCacheEntry{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Провайдер маршрутов вернул статус %d", resp.StatusCode)
		return routeCacheEntry{}, false
	}

	var decoded RouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Printf("Ошибка при декодировании ответа маршрута: %v", err)
		return routeCacheEntry{}, false
	}
	if len(decoded.Result.Routes) == 0 || len(decoded.Result.Routes[0].Points) == 0 {
		return routeCacheEntry{}, false
	}

	points := make([]models.Location, 0, len(decoded.Result.Routes[0].Points))
	for _, p := range decoded.Result.Routes[0].Points {
		points = append(points, models.Location{Latitude: p.Lat, Longitude: p.Lon})
	}
	return routeCacheEntry{Points: points}, true
}
