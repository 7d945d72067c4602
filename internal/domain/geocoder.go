package domain

import "context"

// UnknownCity is reported when no geocoding answer is available.
const UnknownCity = "Unknown"

// GeocodingResult is a geocoding provider's answer. An empty FormattedAddress
// means the provider found nothing.
type GeocodingResult struct {
	FormattedAddress string
}

// Geocoder resolves coordinates to place details.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
