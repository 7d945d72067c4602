// Package predictor turns raw seismic feature vectors into class labels.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

// Predictor validates, transforms and classifies one feature vector per call.
// It holds no mutable state and is safe for concurrent use.
type Predictor struct {
	params     domain.TransformParams
	classifier domain.Classifier
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Predictor. A nil classifier starts the predictor degraded:
// every Predict call fails with domain.ErrInference.
func New(params domain.TransformParams, classifier domain.Classifier, logger *slog.Logger, metrics *observability.Metrics) *Predictor {
	if classifier != nil {
		metrics.ModelLoaded.Set(1)
	} else {
		metrics.ModelLoaded.Set(0)
	}
	return &Predictor{
		params:     params,
		classifier: classifier,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness reports whether a classifier is loaded.
func (p *Predictor) CheckReadiness(_ context.Context) error {
	if p.classifier == nil {
		return errors.New("classifier not loaded")
	}
	return nil
}

// Predict returns the class label for a raw feature vector.
func (p *Predictor) Predict(ctx context.Context, raw []float64) (int, error) {
	start := time.Now()
	label, err := p.predict(ctx, raw)
	p.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	p.metrics.Predictions.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		p.logger.Warn("prediction failed", "features", raw, "error", err)
		return 0, err
	}
	p.logger.Debug("prediction served", "features", raw, "prediction", label)
	return label, nil
}

func (p *Predictor) predict(ctx context.Context, raw []float64) (int, error) {
	transformed, err := domain.TransformFeatures(raw, p.params)
	if err != nil {
		return 0, err
	}

	if p.classifier == nil {
		return 0, fmt.Errorf("%w: classifier not loaded", domain.ErrInference)
	}
	labels, err := p.classifier.Predict(ctx, [][]float64{transformed})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInference, err)
	}
	if len(labels) == 0 {
		return 0, fmt.Errorf("%w: classifier returned no prediction", domain.ErrInference)
	}
	return labels[0], nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "validation_error"
	case errors.Is(err, domain.ErrTransform):
		return "transform_error"
	default:
		return "inference_error"
	}
}
