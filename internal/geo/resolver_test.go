package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/restaurateur-system/internal/geocoder"
	"github.com/mmeshcher/restaurateur-system/internal/model"
)

type stubStorage struct {
	points map[string]*model.GeoPoint

	getErr    error
	updateErr error
	updates   int
}

func newStubStorage() *stubStorage {
	return &stubStorage{points: make(map[string]*model.GeoPoint)}
}

func (s *stubStorage) GetOrCreateGeoPoint(ctx context.Context, address string) (*model.GeoPoint, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if p, ok := s.points[address]; ok {
		copied := *p
		return &copied, nil
	}
	return &model.GeoPoint{Address: address}, nil
}

func (s *stubStorage) UpdateGeoPoint(ctx context.Context, point *model.GeoPoint) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates++
	copied := *point
	s.points[point.Address] = &copied
	return nil
}

type stubGeocoder struct {
	normalized string
	lat, lon   float64
	err        error
	calls      int
}

func (g *stubGeocoder) Geocode(ctx context.Context, address string) (string, float64, float64, error) {
	g.calls++
	return g.normalized, g.lat, g.lon, g.err
}

func TestResolve_Success(t *testing.T) {
	storage := newStubStorage()
	gc := &stubGeocoder{normalized: "Россия, Москва", lat: 55.75, lon: 37.62}

	r := NewResolver(storage, gc)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	point, err := r.Resolve(context.Background(), "Москва")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if !point.Calculated {
		t.Fatalf("point must be calculated")
	}
	if point.NormalizedAddress != "Россия, Москва" {
		t.Fatalf("normalized = %q", point.NormalizedAddress)
	}
	lat, lon, ok := point.Coordinates()
	if !ok || lat != 55.75 || lon != 37.62 {
		t.Fatalf("coordinates = (%v, %v, %v)", lat, lon, ok)
	}
	if !point.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", point.Timestamp, now)
	}
	if storage.updates != 1 {
		t.Fatalf("updates = %d, want 1", storage.updates)
	}
}

func TestResolve_CacheHitSkipsProvider(t *testing.T) {
	storage := newStubStorage()
	gc := &stubGeocoder{normalized: "Россия, Москва", lat: 55.75, lon: 37.62}

	r := NewResolver(storage, gc)

	first, err := r.Resolve(context.Background(), "Москва")
	if err != nil {
		t.Fatalf("first Resolve error: %v", err)
	}

	second, err := r.Resolve(context.Background(), "Москва")
	if err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}

	if gc.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", gc.calls)
	}
	if storage.updates != 1 {
		t.Fatalf("updates = %d, want 1: cache hit must be a pure read", storage.updates)
	}
	if *first.Latitude != *second.Latitude || *first.Longitude != *second.Longitude {
		t.Fatalf("cache hit returned different coordinates")
	}
}

func TestResolve_NoResultIsNotRetried(t *testing.T) {
	storage := newStubStorage()
	gc := &stubGeocoder{err: geocoder.ErrNoResult}

	r := NewResolver(storage, gc)

	point, err := r.Resolve(context.Background(), "несуществующий адрес")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if !point.Calculated {
		t.Fatalf("no-result point must be calculated to avoid endless retries")
	}
	if point.NormalizedAddress != NoData {
		t.Fatalf("normalized = %q, want %q", point.NormalizedAddress, NoData)
	}
	if _, _, ok := point.Coordinates(); ok {
		t.Fatalf("no-result point must have no coordinates")
	}

	if _, err := r.Resolve(context.Background(), "несуществующий адрес"); err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if gc.calls != 1 {
		t.Fatalf("provider calls = %d, want 1: no-result must not be retried", gc.calls)
	}
}

func TestResolve_TransportErrorIsRetried(t *testing.T) {
	storage := newStubStorage()
	gc := &stubGeocoder{err: errors.New("connection refused")}

	r := NewResolver(storage, gc)

	point, err := r.Resolve(context.Background(), "Москва")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if point.Calculated {
		t.Fatalf("transport failure must leave point uncalculated")
	}
	if point.NormalizedAddress != NoData {
		t.Fatalf("normalized = %q, want %q", point.NormalizedAddress, NoData)
	}

	// Провайдер ожил: следующий запрос того же адреса повторяет попытку.
	gc.err = nil
	gc.normalized = "Россия, Москва"
	gc.lat, gc.lon = 55.75, 37.62

	point, err = r.Resolve(context.Background(), "Москва")
	if err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if gc.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", gc.calls)
	}
	if !point.Calculated {
		t.Fatalf("point must be calculated after successful retry")
	}
}

func TestResolve_StorageErrorPropagates(t *testing.T) {
	storage := newStubStorage()
	storage.getErr = errors.New("database is down")

	r := NewResolver(storage, &stubGeocoder{})

	if _, err := r.Resolve(context.Background(), "Москва"); err == nil {
		t.Fatalf("expected storage error")
	}
}
