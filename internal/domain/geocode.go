package domain

import (
	"context"
	"log/slog"
)

// NearestCity reverse geocodes a point into a human-readable place. A nil
// geocoder, a provider error or an empty answer all degrade to UnknownCity.
func NearestCity(ctx context.Context, geocoder Geocoder, lat, lon float64, logger *slog.Logger) string {
	if geocoder == nil {
		return UnknownCity
	}

	result, err := geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return UnknownCity
	}
	if result.FormattedAddress == "" {
		return UnknownCity
	}
	return result.FormattedAddress
}
