// Package geo отвечает за определение координат адресов с кешированием
// результатов в хранилище.
package geo

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/restaurateur-system/internal/geocoder"
	"github.com/mmeshcher/restaurateur-system/internal/model"
)

// NoData — значение нормализованного адреса для точек, координаты которых
// определить не удалось. Та же строка используется презентационным слоем
// как подпись неизвестного расстояния.
const NoData = "нет данных"

// resolveTimeout ограничивает длительность одного обращения к провайдеру.
const resolveTimeout = 10 * time.Second

// Geocoder описывает контракт внешнего сервиса геокодирования.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (normalized string, lat, lon float64, err error)
}

// Storage описывает операции хранилища, необходимые резолверу.
type Storage interface {
	GetOrCreateGeoPoint(ctx context.Context, address string) (*model.GeoPoint, error)
	UpdateGeoPoint(ctx context.Context, point *model.GeoPoint) error
}

// Resolver возвращает координаты адреса, обращаясь к провайдеру только для
// точек, которые ещё не были успешно обработаны. Ошибки провайдера наружу
// не выходят: вызывающий код видит только Calculated и пустые координаты.
type Resolver struct {
	storage  Storage
	geocoder Geocoder
	group    singleflight.Group
	now      func() time.Time
}

// NewResolver создаёт резолвер поверх хранилища и клиента геокодера.
func NewResolver(storage Storage, gc Geocoder) *Resolver {
	return &Resolver{
		storage:  storage,
		geocoder: gc,
		now:      time.Now,
	}
}

// Resolve возвращает геоточку для указанного адреса. Параллельные запросы
// одного адреса схлопываются в одно обращение к провайдеру.
// Ошибка возвращается только при отказе хранилища.
func (r *Resolver) Resolve(ctx context.Context, address string) (*model.GeoPoint, error) {
	v, err, _ := r.group.Do(address, func() (any, error) {
		return r.resolve(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.GeoPoint), nil
}

func (r *Resolver) resolve(ctx context.Context, address string) (*model.GeoPoint, error) {
	point, err := r.storage.GetOrCreateGeoPoint(ctx, address)
	if err != nil {
		return nil, err
	}

	if point.Calculated {
		return point, nil
	}

	geocodeCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	normalized, lat, lon, err := r.geocoder.Geocode(geocodeCtx, address)
	switch {
	case err == nil:
		point.NormalizedAddress = normalized
		point.Latitude = &lat
		point.Longitude = &lon
		point.Calculated = true
	case errors.Is(err, geocoder.ErrNoResult):
		// Провайдер ответил, но адреса не знает: повторные обращения бессмысленны.
		point.NormalizedAddress = NoData
		point.Latitude = nil
		point.Longitude = nil
		point.Calculated = true
	default:
		// Транспортная ошибка: точка остаётся необработанной,
		// следующий запрос адреса повторит попытку.
		point.NormalizedAddress = NoData
		point.Calculated = false
	}

	point.Timestamp = r.now()

	if err := r.storage.UpdateGeoPoint(ctx, point); err != nil {
		return nil, err
	}

	return point, nil
}
