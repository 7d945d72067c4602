package geodesy

import (
	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/tidwall/geodesic"
)

// WGS84 is the geodesic distance on the WGS84 ellipsoid. It solves the inverse
// problem with Karney's algorithm, which converges for every pair of points,
// antipodal ones included.
type WGS84 struct{}

func (WGS84) DistanceKm(a, b domain.GeoPoint) float64 {
	var meters float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &meters, nil, nil)
	return meters / 1000
}
