package features

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// PolynomialSpec is a fitted degree-2 polynomial expansion. It carries the
// same information as a scikit-learn PolynomialFeatures: the input names and
// the powers matrix, one row per output term.
type PolynomialSpec struct {
	InputFeatures []string `json:"input_features"`
	Powers        [][]int  `json:"powers"`

	names []string
}

// NewPolynomialSpec validates a fitted expansion against the expected inputs
// and terms.
func NewPolynomialSpec(inputs []string, powers [][]int) (*PolynomialSpec, error) {
	p := &PolynomialSpec{InputFeatures: slices.Clone(inputs), Powers: powers}
	if err := p.init(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultPolynomialSpec is the expansion used at training time with
// include_bias=False.
func DefaultPolynomialSpec() *PolynomialSpec {
	p, err := NewPolynomialSpec(PolyInputs, [][]int{
		{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{2, 0, 0}, {1, 1, 0}, {1, 0, 1},
		{0, 2, 0}, {0, 1, 1}, {0, 0, 2},
	})
	if err != nil {
		panic(err)
	}
	return p
}

func (p *PolynomialSpec) init() error {
	if ok, detail := sameColumns(PolyInputs, p.InputFeatures); !ok {
		return schemaErrorf("polynomial", "input features: %s", detail)
	}
	if len(p.Powers) == 0 {
		return schemaErrorf("polynomial", "empty powers matrix")
	}

	p.names = make([]string, len(p.Powers))
	for i, row := range p.Powers {
		if len(row) != len(p.InputFeatures) {
			return schemaErrorf("polynomial", "powers row %d has %d entries, expected %d", i, len(row), len(p.InputFeatures))
		}
		degree := 0
		for _, e := range row {
			if e < 0 {
				return schemaErrorf("polynomial", "powers row %d has negative exponent", i)
			}
			degree += e
		}
		name := normalizeTermName(termName(p.InputFeatures, row))
		if degree > 1 && !slices.Contains(PolyTerms, name) {
			return schemaErrorf("polynomial", "unexpected term %q", name)
		}
		p.names[i] = name
	}

	for _, want := range PolyTerms {
		if !slices.Contains(p.names, want) {
			return schemaErrorf("polynomial", "fitted spec does not produce %q", want)
		}
	}
	return nil
}

// FeatureNames returns the normalized output names, one per powers row.
func (p *PolynomialSpec) FeatureNames() []string {
	return slices.Clone(p.names)
}

// Expand evaluates every fitted term on the inputs and returns the six terms
// kept by the model, in model order. inputs must follow InputFeatures.
func (p *PolynomialSpec) Expand(inputs []float64) ([]Column, error) {
	if len(inputs) != len(p.InputFeatures) {
		return nil, schemaErrorf("polynomial", "expected %d inputs, got %d", len(p.InputFeatures), len(inputs))
	}

	byName := make(map[string]float64, len(p.Powers))
	for i, row := range p.Powers {
		v := 1.0
		for j, e := range row {
			v *= ipow(inputs[j], e)
		}
		byName[p.names[i]] = v
	}

	out := make([]Column, len(PolyTerms))
	for i, name := range PolyTerms {
		v, ok := byName[name]
		if !ok {
			return nil, schemaErrorf("polynomial", "term %q missing from expansion", name)
		}
		out[i] = Column{Name: name, Value: v}
	}
	return out, nil
}

// termName reproduces scikit-learn's get_feature_names_out: "a^2", "a b",
// "1" for the bias column.
func termName(inputs []string, row []int) string {
	var parts []string
	for j, e := range row {
		switch {
		case e == 1:
			parts = append(parts, inputs[j])
		case e > 1:
			parts = append(parts, fmt.Sprintf("%s^%d", inputs[j], e))
		}
	}
	if len(parts) == 0 {
		return "1"
	}
	return strings.Join(parts, " ")
}

// normalizeTermName applies the underscore convention used during training.
func normalizeTermName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

func ipow(x float64, e int) float64 {
	switch e {
	case 0:
		return 1
	case 1:
		return x
	case 2:
		return x * x
	}
	return math.Pow(x, float64(e))
}
