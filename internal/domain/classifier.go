package domain

import "context"

// Classifier is a pre-trained model that maps transformed feature rows to
// integer class labels, one label per row.
type Classifier interface {
	Predict(ctx context.Context, rows [][]float64) ([]int, error)
}
