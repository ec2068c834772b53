package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{
			name: "same point",
			lat1: 55.75, lon1: 37.62,
			lat2: 55.75, lon2: 37.62,
			want: 0, delta: 0.001,
		},
		{
			name: "neighbouring addresses in Moscow",
			lat1: 55.75, lon1: 37.62,
			lat2: 55.76, lon2: 37.60,
			want: 1.67, delta: 0.05,
		},
		{
			name: "Moscow to Saint Petersburg",
			lat1: 55.7558, lon1: 37.6173,
			lat2: 59.9343, lon2: 30.3351,
			want: 634, delta: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)

			// Расстояние симметрично.
			assert.InDelta(t, got, DistanceKm(tt.lat2, tt.lon2, tt.lat1, tt.lon1), 0.0001)
		})
	}
}
