// Command validate checks the data artifacts the two services load at startup:
// the classifier artifact, the fault-line GeoJSON and, optionally, a saved copy
// of the earthquake feed. It runs a sample prediction and a sample proximity
// query against them so a broken deployment is caught before it ships.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -model earthquake_model.json \
//	  -faults fault_lines.geojson \
//	  -feed testdata/all_hour.geojson \
//	  -features 3.2,10.5,1.0,0.5 \
//	  -point 35.68,139.69
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-insight-service/internal/adapter/faultlines"
	"github.com/couchcryptid/quake-insight-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-insight-service/internal/analyzer"
	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/geodesy"
	"github.com/couchcryptid/quake-insight-service/internal/model"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
	"github.com/couchcryptid/quake-insight-service/internal/predictor"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	skipped bool
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	modelPath  string
	faultsPath string
	feedPath   string
	features   []float64
	point      domain.GeoPoint
	metric     string
}

func main() {
	modelPath := flag.String("model", "earthquake_model.json", "path to the classifier artifact")
	faultsPath := flag.String("faults", "fault_lines.geojson", "path to the fault-line GeoJSON file")
	feedPath := flag.String("feed", "", "optional path to a saved USGS GeoJSON feed")
	features := flag.String("features", "3.2,10.5,1.0,0.5", "comma-separated sample feature vector")
	point := flag.String("point", "35.68,139.69", "sample query point as lat,lon")
	metric := flag.String("metric", geodesy.MetricWGS84, "distance metric: wgs84 or spherical")
	flag.Parse()

	opts := options{modelPath: *modelPath, faultsPath: *faultsPath, feedPath: *feedPath, metric: *metric}
	var err error
	if opts.features, err = parseFloats(*features); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -features: %v\n", err)
		os.Exit(2)
	}
	ll, err := parseFloats(*point)
	if err != nil || len(ll) != 2 {
		fmt.Fprintf(os.Stderr, "invalid -point %q: want lat,lon\n", *point)
		os.Exit(2)
	}
	opts.point = domain.GeoPoint{Lat: ll[0], Lon: ll[1]}

	os.Exit(run(os.Stdout, opts))
}

func run(out io.Writer, opts options) int {
	// Fixed clock so the reported snapshot time is reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Fprintln(out, "=== Earthquake Artifact Validation ===")
	fmt.Fprintln(out)

	metric, err := geodesy.ByName(opts.metric)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	m, modelPhase := validateModel(opts.modelPath)
	faults, faultPhase := validateFaultLines(opts.faultsPath)
	quakes, feedPhase := validateFeed(opts.feedPath)

	phases := []*phase{
		modelPhase,
		validatePrediction(m, opts.features),
		faultPhase,
		feedPhase,
		validateProximity(faults, quakes, metric, opts.point),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Data: %d fault vertices, %d earthquake records\n", len(faults), len(quakes))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Model artifact ──

func validateModel(path string) (*model.Model, *phase) {
	p := &phase{name: "Phase 1: Model artifact"}
	m, err := model.Load(path)
	if err != nil {
		p.errorf("%v", err)
		return nil, p
	}
	if len(m.Classes()) < 2 {
		p.errorf("model has %d classes", len(m.Classes()))
	}
	return m, p
}

// ── Phase 2: Sample prediction ──
// Runs the full validate-transform-infer path on the sample vector.

func validatePrediction(m *model.Model, features []float64) *phase {
	p := &phase{name: "Phase 2: Sample prediction"}
	if m == nil {
		p.skipped = true
		return p
	}

	pred := predictor.New(domain.DefaultTransformParams(), m, discardLogger(), observability.NewMetricsForTesting())
	label, err := pred.Predict(context.Background(), features)
	if err != nil {
		p.errorf("predict %v: %v", features, err)
		return p
	}
	if !slices.Contains(m.Classes(), label) {
		p.errorf("label %d is not one of the model classes %v", label, m.Classes())
	}
	return p
}

// ── Phase 3: Fault lines ──

func validateFaultLines(path string) ([]domain.GeoPoint, *phase) {
	p := &phase{name: "Phase 3: Fault lines"}
	f, err := os.Open(path)
	if err != nil {
		p.errorf("open %s: %v", path, err)
		return nil, p
	}
	defer f.Close()

	points, err := faultlines.Parse(f)
	if err != nil {
		p.errorf("%v", err)
		return nil, p
	}
	if len(points) == 0 {
		p.errorf("%s contains no LineString vertices", path)
	}
	for i, pt := range points {
		if err := pt.Validate(); err != nil {
			p.errorf("vertex %d (%s): %v", i, pt, err)
		}
	}
	return points, p
}

// ── Phase 4: Earthquake feed ──

func validateFeed(path string) ([]domain.EarthquakeRecord, *phase) {
	p := &phase{name: "Phase 4: Earthquake feed"}
	if path == "" {
		p.skipped = true
		return nil, p
	}
	f, err := os.Open(path)
	if err != nil {
		p.errorf("open %s: %v", path, err)
		return nil, p
	}
	defer f.Close()

	records, err := usgs.Parse(f)
	if err != nil {
		p.errorf("%v", err)
		return nil, p
	}
	snap := domain.NewFeedSnapshot(path, records)
	for i, r := range snap.Records {
		if err := r.Point().Validate(); err != nil {
			p.errorf("record %d (%q): %v", i, r.Place, err)
		}
		if r.Magnitude != nil && (math.IsNaN(*r.Magnitude) || math.IsInf(*r.Magnitude, 0)) {
			p.errorf("record %d (%q): magnitude is not finite", i, r.Place)
		}
	}
	return snap.Records, p
}

// ── Phase 5: Sample proximity query ──

func validateProximity(faults []domain.GeoPoint, quakes []domain.EarthquakeRecord, metric geodesy.Metric, q domain.GeoPoint) *phase {
	p := &phase{name: "Phase 5: Sample proximity query"}
	a := analyzer.New(faults, quakes, nil, metric, discardLogger(), observability.NewMetricsForTesting())

	result, err := a.Analyze(context.Background(), q.Lat, q.Lon)
	if err != nil {
		p.errorf("analyze %s: %v", q, err)
		return p
	}
	if len(faults) > 0 && math.IsInf(result.FaultDistanceKm, 0) {
		p.errorf("fault distance is infinite with %d vertices loaded", len(faults))
	}
	if len(quakes) > 0 && result.NearestEarthquake == nil {
		p.errorf("no nearest earthquake with %d records loaded", len(quakes))
	}
	return p
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
