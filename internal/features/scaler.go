package features

import (
	"fmt"
	"math"
	"slices"
)

// Scaler kinds.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// ScalingSpec holds per-column statistics captured at training time.
//
// A standard scaler maps x to (x-mean)/scale, a min-max scaler maps x to
// x*scale+min, matching scikit-learn's StandardScaler and MinMaxScaler.
type ScalingSpec struct {
	Kind           string    `json:"kind"`
	FeatureNamesIn []string  `json:"feature_names_in"`
	Mean           []float64 `json:"mean,omitempty"`
	Min            []float64 `json:"min,omitempty"`
	Scale          []float64 `json:"scale"`
}

// NewStandardScaler builds a validated standard scaler.
func NewStandardScaler(names []string, mean, scale []float64) (*ScalingSpec, error) {
	s := &ScalingSpec{
		Kind:           ScalerStandard,
		FeatureNamesIn: slices.Clone(names),
		Mean:           slices.Clone(mean),
		Scale:          slices.Clone(scale),
	}
	return s, s.validate()
}

// NewMinMaxScaler builds a validated min-max scaler.
func NewMinMaxScaler(names []string, min, scale []float64) (*ScalingSpec, error) {
	s := &ScalingSpec{
		Kind:           ScalerMinMax,
		FeatureNamesIn: slices.Clone(names),
		Min:            slices.Clone(min),
		Scale:          slices.Clone(scale),
	}
	return s, s.validate()
}

// IdentityScaler leaves every schema column unchanged.
func IdentityScaler() *ScalingSpec {
	names := Schema()
	mean := make([]float64, len(names))
	scale := make([]float64, len(names))
	for i := range scale {
		scale[i] = 1
	}
	s, err := NewStandardScaler(names, mean, scale)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *ScalingSpec) validate() error {
	if ok, detail := sameColumns(Schema(), s.FeatureNamesIn); !ok {
		return schemaErrorf("scaler", "feature_names_in: %s", detail)
	}

	n := len(s.FeatureNamesIn)
	var offsets []float64
	switch s.Kind {
	case ScalerStandard:
		offsets = s.Mean
	case ScalerMinMax:
		offsets = s.Min
	default:
		return fmt.Errorf("unknown scaler kind %q", s.Kind)
	}
	if len(offsets) != n || len(s.Scale) != n {
		return schemaErrorf("scaler", "%d columns but %d offsets and %d scales", n, len(offsets), len(s.Scale))
	}
	for i := 0; i < n; i++ {
		if !isFinite(offsets[i]) || !isFinite(s.Scale[i]) || s.Scale[i] == 0 {
			return fmt.Errorf("scaler column %q has invalid statistics (offset=%g scale=%g)", s.FeatureNamesIn[i], offsets[i], s.Scale[i])
		}
	}
	return nil
}

// Transform scales an ordered set of columns. The column names must match
// FeatureNamesIn exactly, position by position.
func (s *ScalingSpec) Transform(cols []Column) (Vector, error) {
	got := make([]string, len(cols))
	for i, c := range cols {
		got[i] = c.Name
	}
	if ok, detail := sameColumns(s.FeatureNamesIn, got); !ok {
		return Vector{}, schemaErrorf("scaler", "%s", detail)
	}

	out := make([]Column, len(cols))
	for i, c := range cols {
		var v float64
		if s.Kind == ScalerMinMax {
			v = c.Value*s.Scale[i] + s.Min[i]
		} else {
			v = (c.Value - s.Mean[i]) / s.Scale[i]
		}
		out[i] = Column{Name: c.Name, Value: v}
	}
	return Vector{cols: out}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
