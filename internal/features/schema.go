// Package features turns a validated weather reading into the scaled feature
// vector the rainfall classifier was trained on.
//
// The pipeline is a sequence of pure stages, each returning a new value:
//
//	Reading -> derived columns (log1p, Yeo-Johnson, sin/cos)
//	        -> polynomial terms (fitted PolynomialSpec)
//	        -> 15 ordered columns
//	        -> scaled Vector (fitted ScalingSpec)
//
// Column names and order are part of the contract with the fitted scaler.
// They are checked when the artifacts are loaded and again on every
// transform, and any disagreement is reported as a SchemaError.
package features

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Column names produced by the derivation stage.
const (
	ColPressure         = "pressure"
	ColTemparature      = "temparature" // spelling fixed by the training data
	ColHumidity         = "humidity"
	ColSunshine         = "sunshine"
	ColWindspeedLog     = "windspeed_log"
	ColDewpointYeo      = "dewpoint_yeo"
	ColCloudYeo         = "cloud_yeo"
	ColWinddirectionSin = "winddirection_sin"
	ColWinddirectionCos = "winddirection_cos"
)

// PolyInputs are the base columns expanded by the polynomial stage, in the
// order the PolynomialSpec was fitted on.
var PolyInputs = []string{ColSunshine, ColDewpointYeo, ColCloudYeo}

// PolyTerms are the polynomial terms kept by the model, in model order.
var PolyTerms = []string{
	"sunshine^2",
	"sunshine_dewpoint_yeo",
	"sunshine_cloud_yeo",
	"dewpoint_yeo^2",
	"dewpoint_yeo_cloud_yeo",
	"cloud_yeo^2",
}

// BaseColumns are the derived columns that precede the polynomial terms.
var BaseColumns = []string{
	ColPressure,
	ColTemparature,
	ColHumidity,
	ColSunshine,
	ColWindspeedLog,
	ColDewpointYeo,
	ColCloudYeo,
	ColWinddirectionSin,
	ColWinddirectionCos,
}

// Schema returns the full ordered column list expected by the scaler and the
// classifier.
func Schema() []string {
	out := make([]string, 0, len(BaseColumns)+len(PolyTerms))
	out = append(out, BaseColumns...)
	return append(out, PolyTerms...)
}

// Column is a named scalar feature.
type Column struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Vector is an ordered, immutable set of named features.
type Vector struct {
	cols []Column
}

// NewVector copies cols into a new Vector.
func NewVector(cols []Column) Vector {
	cp := make([]Column, len(cols))
	copy(cp, cols)
	return Vector{cols: cp}
}

// Len returns the number of columns.
func (v Vector) Len() int { return len(v.cols) }

// Names returns the column names in order.
func (v Vector) Names() []string {
	out := make([]string, len(v.cols))
	for i, c := range v.cols {
		out[i] = c.Name
	}
	return out
}

// Values returns the column values in order.
func (v Vector) Values() []float64 {
	out := make([]float64, len(v.cols))
	for i, c := range v.cols {
		out[i] = c.Value
	}
	return out
}

// Columns returns a copy of the columns.
func (v Vector) Columns() []Column {
	out := make([]Column, len(v.cols))
	copy(out, v.cols)
	return out
}

// Get returns the value of the named column.
func (v Vector) Get(name string) (float64, bool) {
	for _, c := range v.cols {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the vector as an ordered list of columns.
func (v Vector) MarshalJSON() ([]byte, error) {
	if v.cols == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.cols)
}

// UnmarshalJSON decodes an ordered list of columns.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var cols []Column
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	v.cols = cols
	return nil
}

// SchemaError reports a disagreement between the engineered columns and a
// fitted artifact.
type SchemaError struct {
	Stage  string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("feature schema mismatch at %s: %s", e.Stage, e.Detail)
}

func schemaErrorf(stage, format string, args ...any) error {
	return &SchemaError{Stage: stage, Detail: fmt.Sprintf(format, args...)}
}

// sameColumns compares two name lists byte-for-byte and describes the first
// difference.
func sameColumns(want, got []string) (bool, string) {
	if len(want) != len(got) {
		return false, fmt.Sprintf("expected %d columns, got %d (%s)", len(want), len(got), strings.Join(got, ","))
	}
	for i := range want {
		if want[i] != got[i] {
			return false, fmt.Sprintf("column %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	return true, ""
}
