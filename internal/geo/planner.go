package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"fleet-backend/internal/models"
)

var (
	// ErrStaleResolution выбор сменился, пока шло разрешение; результат отброшен
	ErrStaleResolution = errors.New("разрешение устарело")

	// ErrGeocodeFailed не удалось геокодировать пункт отправления или назначения
	ErrGeocodeFailed = errors.New("не удалось геокодировать адрес")
)

// Plan результат составного разрешения «адреса -> координаты -> путь»
type Plan struct {
	Origin      models.Location   `json:"origin"`
	Destination models.Location   `json:"destination"`
	Path        []models.Location `json:"path"`
	Fallback    bool              `json:"fallback"`
	DistanceKm  float64           `json:"distance_km"`
}

// Planner выполняет трехшаговое разрешение: геокодирование отправления,
// геокодирование назначения, построение пути. Каждый шаг требует внешнего
// вызова, поэтому выбор вызывающего может смениться посреди операции. Счетчик
// поколений гарантирует, что результат устаревшего разрешения будет
// отброшен, а не применен к новому выбору.
type Planner struct {
	geocoder *Geocoder
	routes   *RouteResolver
	gen      uint64
}

func NewPlanner(geocoder *Geocoder, routes *RouteResolver) *Planner {
	return &Planner{geocoder: geocoder, routes: routes}
}

// Select объявляет новый выбор и возвращает его поколение. Результаты
// разрешений, начатых с прежним поколением, будут отброшены.
func (p *Planner) Select() uint64 {
	return atomic.AddUint64(&p.gen, 1)
}

// Plan разрешает пару адресов в путь. Между шагами проверяется
// актуальность поколения gen.
func (p *Planner) Plan(ctx context.Context, gen uint64, originText, destText string) (*Plan, error) {
	return p.resolve(ctx, originText, destText, func() bool { return p.stale(gen) })
}

// PlanOnce разрешает пару адресов вне механизма выбора: результат не
// привязан к поколению и не обесценивается чужим Select. Используется
// одноразовыми серверными разрешениями, у которых нет сменяемого выбора.
func (p *Planner) PlanOnce(ctx context.Context, originText, destText string) (*Plan, error) {
	return p.resolve(ctx, originText, destText, nil)
}

func (p *Planner) resolve(ctx context.Context, originText, destText string, stale func() bool) (*Plan, error) {
	origin, diag := p.geocoder.Resolve(ctx, originText)
	if origin == nil {
		return nil, fmt.Errorf("%w: %s", ErrGeocodeFailed, diag)
	}
	if stale != nil && stale() {
		return nil, ErrStaleResolution
	}

	dest, diag := p.geocoder.Resolve(ctx, destText)
	if dest == nil {
		return nil, fmt.Errorf("%w: %s", ErrGeocodeFailed, diag)
	}
	if stale != nil && stale() {
		return nil, ErrStaleResolution
	}

	path, fallback := p.routes.Resolve(ctx, *origin, *dest)
	if stale != nil && stale() {
		return nil, ErrStaleResolution
	}

	return &Plan{
		Origin:      *origin,
		Destination: *dest,
		Path:        path,
		Fallback:    fallback,
		DistanceKm:  PathDistanceKm(path),
	}, nil
}

func (p *Planner) stale(gen uint64) bool {
	return atomic.LoadUint64(&p.gen) != gen
}

// HaversineKm расстояние по большому кругу между двумя точками в километрах
func HaversineKm(a, b models.Location) float64 {
	const earthRadiusKm = 6371.0

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathDistanceKm суммарная длина ломаной пути в километрах
func PathDistanceKm(path []models.Location) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += HaversineKm(path[i-1], path[i])
	}
	return total
}
