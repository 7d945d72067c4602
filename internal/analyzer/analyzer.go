// Package analyzer answers proximity queries against fault-line vertices and a
// snapshot of recent earthquakes.
package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/geodesy"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

// Analyzer is built once at startup. Its datasets never change afterwards, so
// it is safe for concurrent use.
type Analyzer struct {
	faults   []domain.GeoPoint
	quakes   []domain.EarthquakeRecord
	geocoder domain.Geocoder
	metric   geodesy.Metric
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates an Analyzer over the given datasets. A nil geocoder reports every
// city as domain.UnknownCity; a nil metric uses geodesy.WGS84.
func New(
	faults []domain.GeoPoint,
	quakes []domain.EarthquakeRecord,
	geocoder domain.Geocoder,
	metric geodesy.Metric,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Analyzer {
	if metric == nil {
		metric = geodesy.WGS84{}
	}
	metrics.FaultVerticesLoaded.Set(float64(len(faults)))
	metrics.EarthquakesLoaded.Set(float64(len(quakes)))
	return &Analyzer{
		faults:   faults,
		quakes:   quakes,
		geocoder: geocoder,
		metric:   metric,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness fails while no fault-line data is loaded. Queries are still
// answered in that state, with an unknown fault distance.
func (a *Analyzer) CheckReadiness(_ context.Context) error {
	if len(a.faults) == 0 {
		return errors.New("no fault-line data loaded")
	}
	return nil
}

// NearestFaultDistance returns the distance in km from the point to the closest
// fault vertex, rounded to two decimals, or +Inf when no faults are loaded.
func (a *Analyzer) NearestFaultDistance(lat, lon float64) float64 {
	q := domain.GeoPoint{Lat: lat, Lon: lon}
	best := math.Inf(1)
	for _, f := range a.faults {
		if d := a.metric.DistanceKm(q, f); d < best {
			best = d
		}
	}
	return round2(best)
}

// NearestEarthquake returns the closest record and its distance in km rounded
// to two decimals. Among equidistant records the first in snapshot order wins.
// It returns (nil, +Inf) when the snapshot is empty.
func (a *Analyzer) NearestEarthquake(lat, lon float64) (*domain.EarthquakeRecord, float64) {
	q := domain.GeoPoint{Lat: lat, Lon: lon}
	best := math.Inf(1)
	var nearest *domain.EarthquakeRecord
	for i := range a.quakes {
		if d := a.metric.DistanceKm(q, a.quakes[i].Point()); d < best {
			best = d
			nearest = &a.quakes[i]
		}
	}
	if nearest == nil {
		return nil, math.Inf(1)
	}
	rec := *nearest
	if rec.Magnitude != nil {
		m := *rec.Magnitude
		rec.Magnitude = &m
	}
	return &rec, round2(best)
}

// NearestCity reverse geocodes the point, degrading to domain.UnknownCity.
func (a *Analyzer) NearestCity(ctx context.Context, lat, lon float64) string {
	return domain.NearestCity(ctx, a.geocoder, lat, lon, a.logger)
}

// Analyze composes the nearest city, fault distance and nearest earthquake for
// a query point.
func (a *Analyzer) Analyze(ctx context.Context, lat, lon float64) (domain.ProximityResult, error) {
	if err := (domain.GeoPoint{Lat: lat, Lon: lon}).Validate(); err != nil {
		return domain.ProximityResult{}, err
	}

	start := time.Now()
	defer func() {
		a.metrics.Analyses.Inc()
		a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	result := domain.ProximityResult{
		NearestCity:     a.NearestCity(ctx, lat, lon),
		FaultDistanceKm: a.NearestFaultDistance(lat, lon),
	}
	if rec, dist := a.NearestEarthquake(lat, lon); rec != nil {
		result.NearestEarthquake = &domain.EarthquakeSummary{
			Place:      rec.Place,
			Magnitude:  rec.Magnitude,
			DistanceKm: dist,
		}
	}

	a.logger.Debug("proximity analyzed",
		"lat", lat,
		"lon", lon,
		"city", result.NearestCity,
		"fault_km", result.FaultDistanceKm,
	)
	return result, nil
}

func round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}
