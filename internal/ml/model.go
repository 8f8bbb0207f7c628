package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"rainfall-predictor/internal/features"
)

// Model kinds understood by LoadModel.
const (
	KindLogistic = "logistic"
	KindStacking = "stacking"
)

// LogisticModel is a fitted binary logistic regression.
type LogisticModel struct {
	Kind         string    `json:"kind"`
	Classes      []int     `json:"classes,omitempty"`
	FeatureNames []string  `json:"feature_names,omitempty"`
	Coef         []float64 `json:"coef"`
	Intercept    float64   `json:"intercept"`
}

func (m *LogisticModel) validate() error {
	if len(m.Coef) == 0 {
		return errors.New("logistic model has no coefficients")
	}
	if len(m.FeatureNames) > 0 && len(m.FeatureNames) != len(m.Coef) {
		return fmt.Errorf("logistic model has %d feature names and %d coefficients", len(m.FeatureNames), len(m.Coef))
	}
	if len(m.Classes) > 0 && !slices.Equal(m.Classes, []int{0, 1}) {
		return fmt.Errorf("logistic model classes must be [0 1], got %v", m.Classes)
	}
	for _, c := range append(slices.Clone(m.Coef), m.Intercept) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("logistic model has non-finite parameters")
		}
	}
	return nil
}

// proba returns P(class 1 | x).
func (m *LogisticModel) proba(x []float64) (float64, error) {
	if len(x) != len(m.Coef) {
		return 0, fmt.Errorf("feature shape mismatch: model expects %d features, got %d", len(m.Coef), len(x))
	}
	z := m.Intercept
	for i, c := range m.Coef {
		z += c * x[i]
	}
	return sigmoid(z), nil
}

// PredictProba implements Scorer.
func (m *LogisticModel) PredictProba(ctx context.Context, v features.Vector) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, &InferenceError{Op: "logistic", Err: err}
	}
	if err := checkNames(m.FeatureNames, v.Names()); err != nil {
		return nil, &InferenceError{Op: "logistic", Err: err}
	}
	p, err := m.proba(v.Values())
	if err != nil {
		return nil, &InferenceError{Op: "logistic", Err: err}
	}
	return []float64{1 - p, p}, nil
}

// StackingModel combines base logistic estimators through a final logistic
// estimator fed with their rain probabilities, and optionally the raw
// features, as in scikit-learn's StackingClassifier.
type StackingModel struct {
	Kind           string           `json:"kind"`
	FeatureNames   []string         `json:"feature_names,omitempty"`
	Estimators     []*LogisticModel `json:"estimators"`
	FinalEstimator *LogisticModel   `json:"final_estimator"`
	Passthrough    bool             `json:"passthrough"`
}

func (m *StackingModel) validate() error {
	if len(m.Estimators) == 0 {
		return errors.New("stacking model has no base estimators")
	}
	if m.FinalEstimator == nil {
		return errors.New("stacking model has no final estimator")
	}
	width := -1
	for i, e := range m.Estimators {
		if err := e.validate(); err != nil {
			return fmt.Errorf("estimator %d: %w", i, err)
		}
		if width >= 0 && len(e.Coef) != width {
			return fmt.Errorf("estimator %d expects %d features, others %d", i, len(e.Coef), width)
		}
		width = len(e.Coef)
	}
	if err := m.FinalEstimator.validate(); err != nil {
		return fmt.Errorf("final estimator: %w", err)
	}
	meta := len(m.Estimators)
	if m.Passthrough {
		meta += width
	}
	if len(m.FinalEstimator.Coef) != meta {
		return fmt.Errorf("final estimator expects %d inputs, stack produces %d", len(m.FinalEstimator.Coef), meta)
	}
	return nil
}

// PredictProba implements Scorer.
func (m *StackingModel) PredictProba(ctx context.Context, v features.Vector) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, &InferenceError{Op: "stacking", Err: err}
	}
	if err := checkNames(m.FeatureNames, v.Names()); err != nil {
		return nil, &InferenceError{Op: "stacking", Err: err}
	}

	x := v.Values()
	meta := make([]float64, 0, len(m.Estimators)+len(x))
	for i, e := range m.Estimators {
		p, err := e.proba(x)
		if err != nil {
			return nil, &InferenceError{Op: "stacking", Err: fmt.Errorf("estimator %d: %w", i, err)}
		}
		meta = append(meta, p)
	}
	if m.Passthrough {
		meta = append(meta, x...)
	}

	p, err := m.FinalEstimator.proba(meta)
	if err != nil {
		return nil, &InferenceError{Op: "stacking", Err: fmt.Errorf("final estimator: %w", err)}
	}
	return []float64{1 - p, p}, nil
}

// LoadModel decodes a persisted classifier.
func LoadModel(path string) (Scorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}

	switch head.Kind {
	case KindLogistic, "":
		var m LogisticModel
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse model %s: %w", path, err)
		}
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		if err := checkInputs(m.FeatureNames, len(m.Coef)); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		return &m, nil
	case KindStacking:
		var m StackingModel
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse model %s: %w", path, err)
		}
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		if err := checkInputs(m.FeatureNames, len(m.Estimators[0].Coef)); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		for i, e := range m.Estimators {
			if err := checkInputs(e.FeatureNames, len(e.Coef)); err != nil {
				return nil, fmt.Errorf("model %s: estimator %d: %w", path, i, err)
			}
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("model %s: unknown kind %q", path, head.Kind)
	}
}

// checkInputs rejects a persisted model that cannot accept the column schema.
func checkInputs(names []string, width int) error {
	schema := features.Schema()
	if width != len(schema) {
		return fmt.Errorf("model expects %d features, schema has %d", width, len(schema))
	}
	if len(names) > 0 && !slices.Equal(names, schema) {
		return fmt.Errorf("feature names do not match schema: expected %v, got %v", schema, names)
	}
	return nil
}

func checkNames(want, got []string) error {
	if len(want) == 0 || slices.Equal(want, got) {
		return nil
	}
	return fmt.Errorf("feature names do not match model: expected %v, got %v", want, got)
}

// sigmoid converts a score to a probability.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
