package domain

import (
	"time"

	"github.com/google/uuid"
)

// InsightKind tells which service produced an insight.
type InsightKind string

const (
	InsightPrediction InsightKind = "prediction"
	InsightAnalysis   InsightKind = "analysis"
)

// InsightEvent records one successful prediction or analysis for downstream
// consumers.
type InsightEvent struct {
	ID         string      `json:"id"`
	Kind       InsightKind `json:"kind"`
	OccurredAt time.Time   `json:"occurred_at"`

	Features   []float64 `json:"features,omitempty"`
	Prediction *int      `json:"prediction,omitempty"`

	Query     *GeoPoint        `json:"query,omitempty"`
	Proximity *ProximityResult `json:"proximity,omitempty"`
}

// NewPredictionInsight captures the raw features of a request and the label
// the classifier assigned to them.
func NewPredictionInsight(features []float64, label int) InsightEvent {
	f := make([]float64, len(features))
	copy(f, features)
	return InsightEvent{
		ID:         uuid.NewString(),
		Kind:       InsightPrediction,
		OccurredAt: clock.Now(),
		Features:   f,
		Prediction: &label,
	}
}

// NewAnalysisInsight captures a proximity query and its answer.
func NewAnalysisInsight(query GeoPoint, result ProximityResult) InsightEvent {
	return InsightEvent{
		ID:         uuid.NewString(),
		Kind:       InsightAnalysis,
		OccurredAt: clock.Now(),
		Query:      &query,
		Proximity:  &result,
	}
}
