package config

import (
	"errors"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/quake-insight-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/geodesy"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	PredictorHTTPAddr string
	AnalyzerHTTPAddr  string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration

	// Classifier configuration. ModelURL, when set, takes precedence over ModelPath.
	ModelPath       string
	ModelURL        string
	ModelTimeout    time.Duration
	TransformParams domain.TransformParams

	// Proximity analysis configuration.
	FaultLinesPath    string
	EarthquakeFeedURL string
	FeedTimeout       time.Duration
	DistanceMetric    string

	// OpenCage geocoding configuration.
	OpenCageAPIKey    string
	OpenCageEnabled   bool
	OpenCageTimeout   time.Duration
	OpenCageCacheSize int

	// Insight publishing. Disabled when KafkaBrokers is empty.
	KafkaBrokers       []string
	KafkaInsightsTopic string
}

// KafkaEnabled reports whether insight events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	modelTimeout, err := parseDuration("MODEL_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parseDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	openCageTimeout, err := parseDuration("OPENCAGE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	params, err := parseTransformParams()
	if err != nil {
		return nil, err
	}

	openCageKey := os.Getenv("OPENCAGE_API_KEY")
	openCageEnabled := openCageKey != ""
	if v := os.Getenv("OPENCAGE_ENABLED"); v != "" {
		openCageEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		PredictorHTTPAddr: sharedcfg.EnvOrDefault("PREDICTOR_HTTP_ADDR", ":5000"),
		AnalyzerHTTPAddr:  sharedcfg.EnvOrDefault("ANALYZER_HTTP_ADDR", ":5001"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,

		ModelPath:       sharedcfg.EnvOrDefault("MODEL_PATH", "earthquake_model.json"),
		ModelURL:        os.Getenv("MODEL_URL"),
		ModelTimeout:    modelTimeout,
		TransformParams: params,

		FaultLinesPath:    sharedcfg.EnvOrDefault("FAULT_LINES_PATH", "fault_lines.geojson"),
		EarthquakeFeedURL: sharedcfg.EnvOrDefault("EARTHQUAKE_FEED_URL", usgs.DefaultFeedURL),
		FeedTimeout:       feedTimeout,
		DistanceMetric:    sharedcfg.EnvOrDefault("DISTANCE_METRIC", geodesy.MetricWGS84),

		OpenCageAPIKey:    openCageKey,
		OpenCageEnabled:   openCageEnabled,
		OpenCageTimeout:   openCageTimeout,
		OpenCageCacheSize: parseOpenCageCacheSize(),

		KafkaBrokers:       brokers,
		KafkaInsightsTopic: sharedcfg.EnvOrDefault("KAFKA_INSIGHTS_TOPIC", "earthquake-insights"),
	}

	if cfg.ModelPath == "" && cfg.ModelURL == "" {
		return nil, errors.New("MODEL_PATH or MODEL_URL is required")
	}
	if cfg.EarthquakeFeedURL == "" {
		return nil, errors.New("EARTHQUAKE_FEED_URL is required")
	}
	if _, err := geodesy.ByName(cfg.DistanceMetric); err != nil {
		return nil, errors.New("invalid DISTANCE_METRIC: " + err.Error())
	}
	if cfg.OpenCageEnabled && cfg.OpenCageAPIKey == "" {
		return nil, errors.New("OPENCAGE_ENABLED is true but OPENCAGE_API_KEY is not set")
	}
	if cfg.KafkaEnabled() && cfg.KafkaInsightsTopic == "" {
		return nil, errors.New("KAFKA_INSIGHTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

// parseTransformParams reads the per-feature Box-Cox exponents. Unset
// variables keep the exponents the bundled model was trained with.
func parseTransformParams() (domain.TransformParams, error) {
	p := domain.DefaultTransformParams()
	fields := []struct {
		key string
		dst *float64
	}{
		{"BOXCOX_LAMBDA_SPEED", &p.Speed},
		{"BOXCOX_LAMBDA_DIST", &p.Dist},
		{"BOXCOX_LAMBDA_OTHER1", &p.Other1},
		{"BOXCOX_LAMBDA_OTHER2", &p.Other2},
	}
	for _, f := range fields {
		s := os.Getenv(f.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.TransformParams{}, errors.New("invalid " + f.key)
		}
		*f.dst = v
	}
	return p, nil
}

func parseOpenCageCacheSize() int {
	if s := os.Getenv("OPENCAGE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
