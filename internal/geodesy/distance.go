// Package geodesy computes surface distances between geographic points.
package geodesy

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/golang/geo/s2"
)

// Metric names accepted by ByName.
const (
	MetricWGS84     = "wgs84"
	MetricSpherical = "spherical"
)

// MeanEarthRadiusKm is the IUGG mean radius of the Earth.
const MeanEarthRadiusKm = 6371.0088

// Metric measures the surface distance between two points in kilometers.
type Metric interface {
	DistanceKm(a, b domain.GeoPoint) float64
}

// ByName returns the metric registered under name (case-insensitive).
func ByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case MetricWGS84:
		return WGS84{}, nil
	case MetricSpherical:
		return Spherical{}, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", name)
	}
}

// Spherical is the great-circle distance on a sphere of MeanEarthRadiusKm.
type Spherical struct{}

func (Spherical) DistanceKm(a, b domain.GeoPoint) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * MeanEarthRadiusKm
}
