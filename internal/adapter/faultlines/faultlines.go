// Package faultlines loads fault-line geometry from a GeoJSON file.
package faultlines

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
)

// Parse flattens every LineString feature of a GeoJSON feature collection into
// its vertices, in file order. Other geometry types are ignored.
func Parse(r io.Reader) ([]domain.GeoPoint, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read fault lines: %w", domain.ErrDataLoad, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode fault lines: %w", domain.ErrDataLoad, err)
	}

	var points []domain.GeoPoint
	for _, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		for _, p := range ls {
			points = append(points, domain.GeoPoint{Lat: p.Lat(), Lon: p.Lon()})
		}
	}
	return points, nil
}

// Load reads the fault-line file at path. Any failure is logged and yields an
// empty set so the analyzer can still start.
func Load(path string, logger *slog.Logger) []domain.GeoPoint {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("failed to load fault lines",
			"path", path,
			"error", fmt.Errorf("%w: %w", domain.ErrDataLoad, err),
		)
		return []domain.GeoPoint{}
	}
	defer f.Close()

	points, err := Parse(f)
	if err != nil {
		logger.Error("failed to load fault lines", "path", path, "error", err)
		return []domain.GeoPoint{}
	}

	logger.Info("fault lines loaded", "path", path, "vertices", len(points))
	return points
}
