package rainfall

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rainfall-predictor/internal/common"
	"rainfall-predictor/internal/features"
	"rainfall-predictor/internal/ml"
)

// TestArtifacts is a small artifact set for tests: an identity standard
// scaler and a logistic model driven by humidity alone, so that
// P(rain) = sigmoid(HumidityCoef*humidity + Intercept).
type TestArtifacts struct {
	HumidityCoef float64
	Intercept    float64
	Version      string
	Power        *features.PowerSpec
}

// DefaultTestArtifacts puts the decision boundary at 80% humidity.
func DefaultTestArtifacts() TestArtifacts {
	return TestArtifacts{HumidityCoef: 0.1, Intercept: -8, Version: "test"}
}

// WriteArtifacts writes a into dir.
func WriteArtifacts(dir string, a TestArtifacts) error {
	schema := features.Schema()

	coef := make([]float64, len(schema))
	for i, name := range schema {
		if name == features.ColHumidity {
			coef[i] = a.HumidityCoef
		}
	}
	mean := make([]float64, len(schema))
	scale := make([]float64, len(schema))
	for i := range scale {
		scale[i] = 1
	}

	files := map[string]any{
		common.DefaultPolyFile: features.DefaultPolynomialSpec(),
	}
	files[common.DefaultScalerFile] = features.ScalingSpec{
		Kind:           features.ScalerStandard,
		FeatureNamesIn: schema,
		Mean:           mean,
		Scale:          scale,
	}
	files[common.DefaultModelFile] = ml.LogisticModel{
		Kind:         ml.KindLogistic,
		Classes:      []int{0, 1},
		FeatureNames: schema,
		Coef:         coef,
		Intercept:    a.Intercept,
	}
	if a.Power != nil {
		files[common.DefaultPowerFile] = a.Power
	}

	for name, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}

	manifest := fmt.Sprintf("version: %q\ntrained_at: 2024-01-01T00:00:00Z\n", a.Version)
	return os.WriteFile(filepath.Join(dir, common.ManifestFile), []byte(manifest), 0o644)
}
