package domain

import (
	"fmt"
	"math"
)

// Feature positions within a feature vector.
const (
	FeatureSpeed = iota
	FeatureDist
	FeatureOther1
	FeatureOther2

	FeatureCount
)

// FeatureNames lists feature names in vector order.
var FeatureNames = [FeatureCount]string{"speed", "dist", "other1", "other2"}

// TransformParams holds the pre-fit Box-Cox exponent of every feature. Values
// are fixed at startup and must match the ones the classifier was trained with.
type TransformParams struct {
	Speed  float64
	Dist   float64
	Other1 float64
	Other2 float64
}

// DefaultTransformParams returns the exponents fitted on the training set of
// the bundled earthquake model.
func DefaultTransformParams() TransformParams {
	return TransformParams{
		Speed:  0.5704643439440645,
		Dist:   0.5508930423799914,
		Other1: 0.5704643439440645,
		Other2: -0.2665410973455398,
	}
}

// Lambdas returns the exponents in feature vector order.
func (p TransformParams) Lambdas() [FeatureCount]float64 {
	return [FeatureCount]float64{p.Speed, p.Dist, p.Other1, p.Other2}
}

// ValidateFeatures checks presence and arity of a raw feature vector.
func ValidateFeatures(raw []float64) error {
	if raw == nil {
		return validationErrorf("No features provided")
	}
	if len(raw) != FeatureCount {
		return validationErrorf("Incorrect number of features. Expected %d, got %d", FeatureCount, len(raw))
	}
	return nil
}

// BoxCox applies the one-parameter Box-Cox transform to x. It fails for
// non-positive or non-finite x.
func BoxCox(x, lambda float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return 0, fmt.Errorf("box-cox undefined for x=%g", x)
	}
	if lambda == 0 {
		return math.Log(x), nil
	}
	// expm1(λ·ln x) == x^λ - 1, without cancellation for λ near zero.
	return math.Expm1(lambda*math.Log(x)) / lambda, nil
}

// TransformFeatures shifts every raw feature by one and applies its Box-Cox
// transform, returning the transformed vector in the same order.
func TransformFeatures(raw []float64, params TransformParams) ([]float64, error) {
	if err := ValidateFeatures(raw); err != nil {
		return nil, err
	}

	lambdas := params.Lambdas()
	out := make([]float64, FeatureCount)
	for i, v := range raw {
		t, err := BoxCox(v+1, lambdas[i])
		if err != nil {
			return nil, &TransformError{Feature: FeatureNames[i], Value: v, Lambda: lambdas[i]}
		}
		out[i] = t
	}
	return out, nil
}
