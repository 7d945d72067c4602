package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/quake-insight-service/internal/adapter/http"
	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPredictor struct {
	label    int
	err      error
	readyErr error
	panicMsg string
	got      []float64
}

func (m *mockPredictor) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockPredictor) Predict(_ context.Context, raw []float64) (int, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.got = raw
	if m.err != nil {
		return 0, m.err
	}
	if err := domain.ValidateFeatures(raw); err != nil {
		return 0, err
	}
	return m.label, nil
}

type mockAnalyzer struct {
	result   domain.ProximityResult
	err      error
	readyErr error
	lat, lon float64
}

func (m *mockAnalyzer) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockAnalyzer) Analyze(_ context.Context, lat, lon float64) (domain.ProximityResult, error) {
	m.lat, m.lon = lat, lon
	return m.result, m.err
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.InsightEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, events ...domain.InsightEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *mockPublisher) published() []domain.InsightEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.InsightEvent(nil), m.events...)
}

// blockingPublisher holds every publish until its context ends.
type blockingPublisher struct {
	started chan struct{}
	err     chan error
}

func (b *blockingPublisher) Publish(ctx context.Context, _ ...domain.InsightEvent) error {
	close(b.started)
	<-ctx.Done()
	b.err <- ctx.Err()
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// drain waits for background insight publishes to finish.
func drain(t *testing.T, srv *httpadapter.Server) {
	t.Helper()
	require.NoError(t, srv.Shutdown(context.Background()))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func newPredictorServer(p *mockPredictor, pub httpadapter.Publisher) *httpadapter.Server {
	return httpadapter.NewPredictorServer(":0", p, pub, observability.NewMetricsForTesting(), discardLogger())
}

// --- operational routes ---

func TestHealthzReturns200(t *testing.T) {
	rec := doRequest(t, newPredictorServer(&mockPredictor{}, nil), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := doRequest(t, newPredictorServer(&mockPredictor{}, nil), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeBody(t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	a := &mockAnalyzer{readyErr: fmt.Errorf("no fault-line data loaded")}
	srv := httpadapter.NewAnalyzerServer(":0", a, nil, observability.NewMetricsForTesting(), discardLogger())
	rec := doRequest(t, srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no fault-line data loaded", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(t, newPredictorServer(&mockPredictor{}, nil), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestIDHeader(t *testing.T) {
	srv := newPredictorServer(&mockPredictor{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRequestDurationRecorded(t *testing.T) {
	m := observability.NewMetricsForTesting()
	srv := httpadapter.NewPredictorServer(":0", &mockPredictor{}, nil, m, discardLogger())

	doRequest(t, srv, http.MethodGet, "/", "")
	doRequest(t, srv, http.MethodGet, "/nowhere", "")

	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestDuration))
}

// --- prediction service ---

func TestPredictorRoot(t *testing.T) {
	rec := doRequest(t, newPredictorServer(&mockPredictor{}, nil), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, httpadapter.PredictorBanner, rec.Body.String())
}

func TestPredict_Success(t *testing.T) {
	p := &mockPredictor{label: 1}
	pub := &mockPublisher{}
	srv := newPredictorServer(p, pub)
	rec := doRequest(t, srv, http.MethodPost, "/predict", `{"features":[3.2,10.5,1.0,0.5]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prediction":1}`, rec.Body.String())
	assert.Equal(t, []float64{3.2, 10.5, 1.0, 0.5}, p.got)

	drain(t, srv)
	events := pub.published()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, domain.InsightPrediction, ev.Kind)
	require.NotNil(t, ev.Prediction)
	assert.Equal(t, 1, *ev.Prediction)
	assert.Equal(t, []float64{3.2, 10.5, 1.0, 0.5}, ev.Features)
}

func TestPredict_PublishFailureDoesNotAffectResponse(t *testing.T) {
	m := observability.NewMetricsForTesting()
	pub := &mockPublisher{err: errors.New("broker down")}
	srv := httpadapter.NewPredictorServer(":0", &mockPredictor{label: 0}, pub, m, discardLogger())

	rec := doRequest(t, srv, http.MethodPost, "/predict", `{"features":[1,2,3,4]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prediction":0}`, rec.Body.String())
	drain(t, srv)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsightsPublished.WithLabelValues("prediction", "error")))
}

func TestPredict_SlowBrokerDoesNotDelayResponse(t *testing.T) {
	m := observability.NewMetricsForTesting()
	pub := &blockingPublisher{started: make(chan struct{}), err: make(chan error, 1)}
	srv := httpadapter.NewPredictorServer(":0", &mockPredictor{label: 1}, pub, m, discardLogger())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	start := time.Now()
	resp, err := http.Post(ts.URL+"/predict", "application/json", strings.NewReader(`{"features":[1,2,3,4]}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"prediction":1}`, string(body))
	assert.Less(t, elapsed, time.Second, "response waited on the publisher")

	<-pub.started
	// The publish outlives the request and ends on its own timeout.
	assert.ErrorIs(t, <-pub.err, context.DeadlineExceeded)
	drain(t, srv)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsightsPublished.WithLabelValues("prediction", "error")))
}

func TestShutdown_StopsWaitingForPublishesAtDeadline(t *testing.T) {
	pub := &blockingPublisher{started: make(chan struct{}), err: make(chan error, 1)}
	srv := newPredictorServer(&mockPredictor{label: 1}, pub)
	rec := doRequest(t, srv, http.MethodPost, "/predict", `{"features":[1,2,3,4]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	<-pub.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name       string
		predictor  *mockPredictor
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing features key",
			predictor:  &mockPredictor{},
			body:       `{"values":[1,2,3,4]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "No features provided",
		},
		{
			name:       "null features",
			predictor:  &mockPredictor{},
			body:       `{"features":null}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "No features provided",
		},
		{
			name:       "three features",
			predictor:  &mockPredictor{},
			body:       `{"features":[1,2,3]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Incorrect number of features. Expected 4, got 3",
		},
		{
			name:       "five features",
			predictor:  &mockPredictor{},
			body:       `{"features":[1,2,3,4,5]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Incorrect number of features. Expected 4, got 5",
		},
		{
			name:       "empty features",
			predictor:  &mockPredictor{},
			body:       `{"features":[]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Incorrect number of features. Expected 4, got 0",
		},
		{
			name:       "transform failure",
			predictor:  &mockPredictor{err: &domain.TransformError{Feature: "speed", Value: -1, Lambda: 0.57}},
			body:       `{"features":[-1,2,3,4]}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Box-Cox transformation failed: data must be positive: speed=-1 (shifted 0)",
		},
		{
			name:       "inference failure",
			predictor:  &mockPredictor{err: fmt.Errorf("%w: model exploded", domain.ErrInference)},
			body:       `{"features":[1,2,3,4]}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "An unexpected error occurred: inference failed: model exploded",
		},
		{
			name:       "malformed json",
			predictor:  &mockPredictor{},
			body:       `{"features":`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "An unexpected error occurred: ",
		},
		{
			name:       "non numeric features",
			predictor:  &mockPredictor{},
			body:       `{"features":["a","b","c","d"]}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "An unexpected error occurred: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			srv := newPredictorServer(tt.predictor, pub)
			rec := doRequest(t, srv, http.MethodPost, "/predict", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			msg, _ := decodeBody(t, rec)["error"].(string)
			if strings.HasSuffix(tt.wantError, ": ") {
				assert.True(t, strings.HasPrefix(msg, tt.wantError), msg)
			} else {
				assert.Equal(t, tt.wantError, msg)
			}
			drain(t, srv)
			assert.Empty(t, pub.published(), "failed predictions must not be published")
		})
	}
}

func TestPredict_PanicRecovered(t *testing.T) {
	rec := doRequest(t, newPredictorServer(&mockPredictor{panicMsg: "index out of range"}, nil), http.MethodPost, "/predict", `{"features":[1,2,3,4]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "index out of range", decodeBody(t, rec)["error"])
}

func TestPredict_WrongMethod(t *testing.T) {
	rec := doRequest(t, newPredictorServer(&mockPredictor{}, nil), http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- analysis service ---

func newAnalyzerServer(a *mockAnalyzer, pub httpadapter.Publisher) *httpadapter.Server {
	return httpadapter.NewAnalyzerServer(":0", a, pub, observability.NewMetricsForTesting(), discardLogger())
}

func TestAnalyzerRoot(t *testing.T) {
	rec := doRequest(t, newAnalyzerServer(&mockAnalyzer{}, nil), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, httpadapter.AnalyzerBanner, rec.Body.String())
}

func TestAnalyze_Success(t *testing.T) {
	a := &mockAnalyzer{result: domain.ProximityResult{
		NearestCity:     "Tokyo, Japan",
		FaultDistanceKm: 12.34,
		NearestEarthquake: &domain.EarthquakeSummary{
			Place:      "20 km E of Tokyo",
			Magnitude:  mag(4.1),
			DistanceKm: 21.5,
		},
	}}
	pub := &mockPublisher{}
	srv := newAnalyzerServer(a, pub)
	rec := doRequest(t, srv, http.MethodGet, "/analyze?lat=35.68&lon=139.69", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
	  "Nearest City": "Tokyo, Japan",
	  "Distance to Fault Line (km)": 12.34,
	  "Nearest Earthquake": {"Place": "20 km E of Tokyo", "Magnitude": 4.1, "Distance to User (km)": 21.5}
	}`, rec.Body.String())
	assert.Equal(t, 35.68, a.lat)
	assert.Equal(t, 139.69, a.lon)

	drain(t, srv)
	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.InsightAnalysis, events[0].Kind)
	require.NotNil(t, events[0].Query)
	assert.Equal(t, domain.GeoPoint{Lat: 35.68, Lon: 139.69}, *events[0].Query)
}

func TestAnalyze_DegradedResult(t *testing.T) {
	a := &mockAnalyzer{result: domain.ProximityResult{
		NearestCity:     domain.UnknownCity,
		FaultDistanceKm: math.Inf(1),
	}}
	rec := doRequest(t, newAnalyzerServer(a, nil), http.MethodGet, "/analyze?lat=0&lon=0", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
	  "Nearest City": "Unknown",
	  "Distance to Fault Line (km)": null,
	  "Nearest Earthquake": "No recent earthquake data available."
	}`, rec.Body.String())
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name      string
		analyzer  *mockAnalyzer
		target    string
		wantError string
	}{
		{"missing lat", &mockAnalyzer{}, "/analyze?lon=1", "missing required query parameter: lat"},
		{"missing lon", &mockAnalyzer{}, "/analyze?lat=1", "missing required query parameter: lon"},
		{"empty lat", &mockAnalyzer{}, "/analyze?lat=&lon=1", "missing required query parameter: lat"},
		{"non numeric lon", &mockAnalyzer{}, "/analyze?lat=1&lon=east", `invalid lon: "east" is not a number`},
		{
			"analyzer failure",
			&mockAnalyzer{err: &domain.ValidationError{Reason: "latitude must be in the [-90; 90] range, got 95"}},
			"/analyze?lat=95&lon=0",
			"latitude must be in the [-90; 90] range, got 95",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			srv := newAnalyzerServer(tt.analyzer, pub)
			rec := doRequest(t, srv, http.MethodGet, tt.target, "")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, rec)["error"])
			drain(t, srv)
			assert.Empty(t, pub.published())
		})
	}
}

func mag(v float64) *float64 { return &v }
