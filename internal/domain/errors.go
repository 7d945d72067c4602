package domain

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrValidation = errors.New("validation failed")
	ErrTransform  = errors.New("transform failed")
	ErrInference  = errors.New("inference failed")
	ErrDataLoad   = errors.New("data load failed")
	ErrFeedFetch  = errors.New("feed fetch failed")
)

// ValidationError describes malformed or missing request input. Its message is
// safe to return to clients verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// TransformError reports a feature value outside the Box-Cox domain.
type TransformError struct {
	Feature string
	Value   float64
	Lambda  float64
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("data must be positive: %s=%g (shifted %g)", e.Feature, e.Value, e.Value+1)
}

func (e *TransformError) Unwrap() error { return ErrTransform }
