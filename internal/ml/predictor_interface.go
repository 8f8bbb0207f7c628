// Package ml provides the rainfall classifier capability and the prediction
// invoker that turns a class probability into a rain / no-rain label.
//
// The classifier is an opaque Scorer: an in-process model decoded from a
// persisted artifact, or a remote scoring service. The Predictor always asks
// for probabilities first and applies its decision threshold on top, so the
// decision policy stays outside the model and can be tuned without
// retraining. Scorer failures are returned as InferenceError and are never
// replaced by a default label.
package ml

import (
	"context"
	"fmt"

	"rainfall-predictor/internal/features"
)

// Scorer is a trained binary classifier. PredictProba returns one probability
// per class, in class order; index 1 is the rain class.
type Scorer interface {
	PredictProba(ctx context.Context, v features.Vector) ([]float64, error)
}

// PredictorInterface is the prediction invoker as seen by request handlers.
type PredictorInterface interface {
	// Predict scores v and labels it with the configured threshold.
	Predict(ctx context.Context, v features.Vector) (Prediction, error)

	// PredictWithThreshold scores v and labels it with a caller threshold.
	PredictWithThreshold(ctx context.Context, v features.Vector, threshold float64) (Prediction, error)

	// Threshold returns the configured decision threshold.
	Threshold() float64
}

// InferenceError wraps any failure of the classifier call.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed (%s): %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func inferenceErrorf(op, format string, args ...any) error {
	return &InferenceError{Op: op, Err: fmt.Errorf(format, args...)}
}
