package geocoder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func geocodeBody(normalized, pos string) string {
	return fmt.Sprintf(`{
		"response": {
			"GeoObjectCollection": {
				"featureMember": [
					{
						"GeoObject": {
							"metaDataProperty": {
								"GeocoderMetaData": {"text": %q}
							},
							"Point": {"pos": %q}
						}
					}
				]
			}
		}
	}`, normalized, pos)
}

func TestGeocode_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1.x/" {
			t.Fatalf("path = %s, want /1.x/", r.URL.Path)
		}
		if got := r.URL.Query().Get("apikey"); got != "test-key" {
			t.Fatalf("apikey = %q, want %q", got, "test-key")
		}
		if got := r.URL.Query().Get("geocode"); got != "Москва, Новый Арбат 11" {
			t.Fatalf("geocode = %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Fatalf("format = %q, want json", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geocodeBody("Россия, Москва, улица Новый Арбат, 11", "37.595074 55.752513")))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	normalized, lat, lon, err := client.Geocode(ctx, "Москва, Новый Арбат 11")
	if err != nil {
		t.Fatalf("Geocode error: %v", err)
	}
	if normalized != "Россия, Москва, улица Новый Арбат, 11" {
		t.Fatalf("normalized = %q", normalized)
	}
	if lat != 55.752513 {
		t.Fatalf("lat = %v, want 55.752513", lat)
	}
	if lon != 37.595074 {
		t.Fatalf("lon = %v, want 37.595074", lon)
	}
}

func TestGeocode_NoResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": {"GeoObjectCollection": {"featureMember": []}}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, _, err := client.Geocode(ctx, "адрес, которого нет")
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestGeocode_MalformedPos(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geocodeBody("где-то", "не координаты")))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, _, err := client.Geocode(ctx, "где-то")
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult for malformed pos, got %v", err)
	}
}

func TestGeocode_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "bad-key")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, _, err := client.Geocode(ctx, "Москва")
	if err == nil {
		t.Fatalf("expected error for status 403")
	}
	if errors.Is(err, ErrNoResult) {
		t.Fatalf("transport-level failure must not be ErrNoResult, got %v", err)
	}
}

func TestGeocode_RetriesServerError(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geocodeBody("Россия, Санкт-Петербург", "30.315868 59.939095")))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, lat, _, err := client.Geocode(ctx, "Санкт-Петербург")
	if err != nil {
		t.Fatalf("Geocode error: %v", err)
	}
	if calls < 2 {
		t.Fatalf("calls = %d, want at least 2", calls)
	}
	if lat != 59.939095 {
		t.Fatalf("lat = %v, want 59.939095", lat)
	}
}
