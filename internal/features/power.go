package features

import (
	"fmt"
	"math"
)

// PowerSpec is a fitted Yeo-Johnson transform for the *_yeo columns, as
// produced by scikit-learn's PowerTransformer. When Standardize is set the
// transformed value is also centered and scaled with Mean and Scale.
type PowerSpec struct {
	Method      string             `json:"method"`
	Lambdas     map[string]float64 `json:"lambdas"`
	Standardize bool               `json:"standardize"`
	Mean        map[string]float64 `json:"mean,omitempty"`
	Scale       map[string]float64 `json:"scale,omitempty"`
}

var powerColumns = []string{ColDewpointYeo, ColCloudYeo}

func (p *PowerSpec) validate() error {
	if p.Method != "" && p.Method != "yeo-johnson" {
		return fmt.Errorf("unsupported power transform method %q", p.Method)
	}
	for _, col := range powerColumns {
		l, ok := p.Lambdas[col]
		if !ok || !isFinite(l) {
			return schemaErrorf("power", "missing lambda for %q", col)
		}
		if p.Standardize {
			s := p.Scale[col]
			if _, ok := p.Mean[col]; !ok || !isFinite(s) || s == 0 {
				return schemaErrorf("power", "missing standardization statistics for %q", col)
			}
		}
	}
	for col := range p.Lambdas {
		if col != ColDewpointYeo && col != ColCloudYeo {
			return schemaErrorf("power", "unexpected column %q", col)
		}
	}
	return nil
}

// Apply transforms the raw value destined for column col. A nil spec is the
// identity.
func (p *PowerSpec) Apply(col string, x float64) float64 {
	if p == nil {
		return x
	}
	y := YeoJohnson(x, p.Lambdas[col])
	if p.Standardize {
		y = (y - p.Mean[col]) / p.Scale[col]
	}
	return y
}

// YeoJohnson applies the Yeo-Johnson power transform with parameter lambda.
func YeoJohnson(x, lambda float64) float64 {
	const eps = 1e-12
	if x >= 0 {
		if math.Abs(lambda) < eps {
			return math.Log1p(x)
		}
		return (math.Pow(x+1, lambda) - 1) / lambda
	}
	if math.Abs(lambda-2) < eps {
		return -math.Log1p(-x)
	}
	return -(math.Pow(1-x, 2-lambda) - 1) / (2 - lambda)
}
