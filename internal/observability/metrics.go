package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_insight"

// Metrics holds the Prometheus counters, histograms, and gauges for both services.
type Metrics struct {
	// Prediction metrics.
	Predictions        *prometheus.CounterVec // labels: outcome={success,validation_error,transform_error,inference_error}
	PredictionDuration prometheus.Histogram
	ModelLoaded        prometheus.Gauge

	// Proximity analysis metrics.
	Analyses            prometheus.Counter
	AnalysisDuration    prometheus.Histogram
	FaultVerticesLoaded prometheus.Gauge
	EarthquakesLoaded   prometheus.Gauge
	FeedFetches         *prometheus.CounterVec // labels: outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Insight publishing and transport metrics.
	InsightsPublished   *prometheus.CounterVec   // labels: kind, outcome={success,error}
	HTTPRequestDuration *prometheus.HistogramVec // labels: method, route, status
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Duration of validate-transform-infer for one request.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when a classifier is available, 0 in degraded mode.",
		}),
		Analyses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total proximity analyses served.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a proximity analysis including the geocoding call.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		FaultVerticesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fault_vertices_loaded",
			Help:      "Number of fault-line vertices held in memory.",
		}),
		EarthquakesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "earthquakes_loaded",
			Help:      "Number of earthquake records in the feed snapshot.",
		}),
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Earthquake feed reads by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "OpenCage API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when nearest-city geocoding is enabled, 0 otherwise.",
		}),
		InsightsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_published_total",
			Help:      "Insight events written to Kafka by kind and outcome.",
		}, []string{"kind", "outcome"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Predictions,
		m.PredictionDuration,
		m.ModelLoaded,
		m.Analyses,
		m.AnalysisDuration,
		m.FaultVerticesLoaded,
		m.EarthquakesLoaded,
		m.FeedFetches,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.InsightsPublished,
		m.HTTPRequestDuration,
	}
}
