package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"fleet-backend/internal/middleware"
	"fleet-backend/internal/models"

	"golang.org/x/sync/singleflight"
)

// GeocodeResponse ответ провайдера геокодирования: первый подходящий
// объект с координатами либо пустой список
type GeocodeResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Result struct {
		Total int `json:"total"`
		Items []struct {
			Name     string `json:"name"`
			FullName string `json:"full_name"`
			Point    struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"point"`
		} `json:"items"`
	} `json:"result"`
}

// Diagnostic сведения о неудачном разрешении для журнала вызывающего.
// Сбой геокодирования не ошибка уровня приложения: Resolve никогда не
// паникует и не возвращает error.
type Diagnostic struct {
	Query      string
	StatusCode int
	Err        error
	Elapsed    time.Duration
}

func (d *Diagnostic) String() string {
	if d == nil {
		return ""
	}
	if d.Err != nil {
		return fmt.Sprintf("геокодирование %q: %v", d.Query, d.Err)
	}
	return fmt.Sprintf("геокодирование %q: статус %d, адрес не найден", d.Query, d.StatusCode)
}

// Geocoder разрешает свободный текст местоположения в координату.
// Кэшируются ТОЛЬКО успешные разрешения: неудача (нет совпадений, не-OK
// ответ, транспортная ошибка) возвращает nil без записи в кэш, чтобы
// временный сбой был повторен при следующем вызове, а не отравил кэш.
type Geocoder struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   Cache
	group   singleflight.Group
}

func NewGeocoder(baseURL, apiKey string, httpClient *http.Client, cache Cache) *Geocoder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Geocoder{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		cache:   cache,
	}
}

func geocodeCacheKey(query string) string {
	return fmt.Sprintf("geocoding:%s", query)
}

type geocodeOutcome struct {
	loc  *models.Location
	diag *Diagnostic
}

// Resolve возвращает координату для текста местоположения либо nil
// с диагностикой. Параллельные запросы по одному и тому же некэшированному
// тексту объединяются в один внешний вызов.
func (g *Geocoder) Resolve(ctx context.Context, query string) (*models.Location, *Diagnostic) {
	cacheKey := geocodeCacheKey(query)

	var cached models.Location
	found, err := g.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		log.Printf("Ошибка при чтении геокэша: %v", err)
	} else if found {
		middleware.TrackGeoRequest("geocode", "ok", true, 0)
		return &cached, nil
	}

	v, _, _ := g.group.Do(cacheKey, func() (interface{}, error) {
		return g.lookup(ctx, query), nil
	})
	outcome := v.(*geocodeOutcome)
	if outcome.loc == nil {
		return nil, outcome.diag
	}

	// Копия на вызывающего: результат singleflight разделяется между горутинами
	loc := *outcome.loc
	return &loc, nil
}

func (g *Geocoder) lookup(ctx context.Context, query string) *geocodeOutcome {
	start := time.Now()

	params := url.Values{}
	params.Add("q", query)
	if g.apiKey != "" {
		params.Add("key", g.apiKey)
	}
	params.Add("fields", "items.point,items.full_name")

	reqURL := fmt.Sprintf("%s/items?%s", g.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return g.failure(query, 0, err, start)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		// Таймаут и обрыв соединения тоже обычная неудача разрешения
		return g.failure(query, 0, err, start)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.failure(query, resp.StatusCode, nil, start)
	}

	var decoded GeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return g.failure(query, resp.StatusCode, err, start)
	}
	if len(decoded.Result.Items) == 0 {
		return g.failure(query, resp.StatusCode, nil, start)
	}

	first := decoded.Result.Items[0]
	loc := models.Location{Latitude: first.Point.Lat, Longitude: first.Point.Lon}

	if err := g.cache.Set(ctx, geocodeCacheKey(query), loc); err != nil {
		log.Printf("Ошибка при сохранении в геокэш: %v", err)
	}

	middleware.TrackGeoRequest("geocode", "ok", false, time.Since(start))
	return &geocodeOutcome{loc: &loc}
}

func (g *Geocoder) failure(query string, status int, err error, start time.Time) *geocodeOutcome {
	middleware.TrackGeoRequest("geocode", "error", false, time.Since(start))
	return &geocodeOutcome{diag: &Diagnostic{
		Query:      query,
		StatusCode: status,
		Err:        err,
		Elapsed:    time.Since(start),
	}}
}
