package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// NoEarthquakePlaceholder replaces the nearest earthquake when the feed
// snapshot holds no records.
const NoEarthquakePlaceholder = "No recent earthquake data available."

// GeoPoint is a WGS-84 latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate rejects non-finite or out-of-range coordinates.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return validationErrorf("coordinates must be finite numbers")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return validationErrorf("latitude must be in the [-90; 90] range, got %g", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return validationErrorf("longitude must be in the [-180; 180] range, got %g", p.Lon)
	}
	return nil
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%g,%g", p.Lat, p.Lon)
}

// EarthquakeRecord is one event from the earthquake feed. Magnitude is nil
// when the feed does not report one.
type EarthquakeRecord struct {
	Place     string   `json:"place"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Magnitude *float64 `json:"magnitude"`
}

// Point returns the epicenter of the record.
func (r EarthquakeRecord) Point() GeoPoint {
	return GeoPoint{Lat: r.Lat, Lon: r.Lon}
}

// FeedSnapshot is a one-time read of the earthquake feed.
type FeedSnapshot struct {
	Source    string             `json:"source"`
	FetchedAt time.Time          `json:"fetched_at"`
	Records   []EarthquakeRecord `json:"records"`
}

// NewFeedSnapshot stamps records read from source with the current time.
func NewFeedSnapshot(source string, records []EarthquakeRecord) FeedSnapshot {
	return FeedSnapshot{Source: source, FetchedAt: clock.Now(), Records: records}
}

// EarthquakeSummary is the nearest earthquake as reported to clients.
type EarthquakeSummary struct {
	Place      string   `json:"Place"`
	Magnitude  *float64 `json:"Magnitude"`
	DistanceKm float64  `json:"Distance to User (km)"`
}

// ProximityResult answers an analysis query. FaultDistanceKm is +Inf when no
// fault data is loaded; NearestEarthquake is nil when the feed was empty.
type ProximityResult struct {
	NearestCity       string
	FaultDistanceKm   float64
	NearestEarthquake *EarthquakeSummary
}

// MarshalJSON renders the client-facing shape. An infinite fault distance is
// written as null and a missing earthquake as NoEarthquakePlaceholder.
func (r ProximityResult) MarshalJSON() ([]byte, error) {
	out := struct {
		NearestCity       string   `json:"Nearest City"`
		FaultDistanceKm   *float64 `json:"Distance to Fault Line (km)"`
		NearestEarthquake any      `json:"Nearest Earthquake"`
	}{
		NearestCity:       r.NearestCity,
		NearestEarthquake: NoEarthquakePlaceholder,
	}
	if !math.IsInf(r.FaultDistanceKm, 0) && !math.IsNaN(r.FaultDistanceKm) {
		d := r.FaultDistanceKm
		out.FaultDistanceKm = &d
	}
	if r.NearestEarthquake != nil {
		out.NearestEarthquake = r.NearestEarthquake
	}
	return json.Marshal(out)
}
