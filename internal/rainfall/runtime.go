// Package rainfall wires the observation validator, the feature transformer
// and the prediction invoker into the request path served by the API, the
// CLI and the offline evaluator.
//
// Load performs all initialization once. The Runtime it returns is read-only
// afterwards and may be shared by any number of concurrent requests.
package rainfall

import (
	"fmt"
	"strings"

	"rainfall-predictor/internal/cfg"
	"rainfall-predictor/internal/features"
	"rainfall-predictor/internal/metrics"
	"rainfall-predictor/internal/ml"

	"github.com/rs/zerolog/log"
)

// Metrics is the metrics sink used by the request path.
type Metrics interface {
	features.MetricsTracker
	ml.MetricsInterface
	ObservationsInc()
	ValidationErrorInc(field string)
	PredictionsStored() metrics.MetricsCounter
	StorageErrors() metrics.MetricsCounter
}

// Runtime holds the artifacts loaded at startup.
type Runtime struct {
	Manifest    ml.Manifest
	Transformer *features.Transformer
	Predictor   ml.PredictorInterface
	Drift       *ml.DriftDetector
	Scorer      string

	remote  *ml.RemoteScorer // nil for the in-process model
	metrics Metrics
}

// Load reads the artifact set named by settings and builds the runtime.
// m may be nil.
func Load(settings cfg.Settings, m Metrics) (*Runtime, error) {
	manifest, err := ml.LoadManifest(settings.ArtifactsDir)
	if err != nil {
		return nil, err
	}

	poly, err := features.LoadPolynomialSpec(manifest.Path(manifest.Polynomial))
	if err != nil {
		return nil, err
	}
	scaler, err := features.LoadScalingSpec(manifest.Path(manifest.Scaler))
	if err != nil {
		return nil, err
	}
	power, err := features.LoadPowerSpec(manifest.Path(manifest.PowerTransform))
	if err != nil {
		return nil, err
	}

	var tracker features.MetricsTracker
	var mlMetrics ml.MetricsInterface
	if m != nil {
		tracker, mlMetrics = m, m
	}

	transformer, err := features.NewTransformer(features.Artifacts{
		Poly:   poly,
		Scaler: scaler,
		Power:  power,
	}, tracker)
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	var scorer ml.Scorer
	var scorerName string
	var remote *ml.RemoteScorer
	if settings.ScorerURL != "" {
		remote = ml.NewRemoteScorer(settings.ScorerURL, settings.ScorerTimeout)
		scorer = remote
		scorerName = "remote"
	} else {
		scorer, err = ml.LoadModel(manifest.Path(manifest.Model))
		if err != nil {
			return nil, err
		}
		scorerName = "local"
	}

	opts := []ml.Option{ml.WithThreshold(settings.ProbThreshold)}
	if mlMetrics != nil {
		opts = append(opts, ml.WithMetrics(mlMetrics))
	}
	predictor, err := ml.NewPredictor(scorer, opts...)
	if err != nil {
		return nil, fmt.Errorf("build predictor: %w", err)
	}

	drift := ml.NewDriftDetector(ml.DriftDetectionConfig{
		Enabled:        transformer.ScalerKind() == features.ScalerStandard,
		FeatureNames:   features.Schema(),
		AlertThreshold: settings.DriftThreshold,
		WindowSize:     settings.DriftWindow,
		Clock:          clock,
		Metrics:        mlMetrics,
	})
	if !drift.IsEnabled() {
		log.Info().Str("scaler", transformer.ScalerKind()).Msg("Drift detection disabled, scaler has no unit baseline")
	}

	if m != nil {
		m.MLModelAgeSet(manifest.Age(clock.Now()).Seconds())
	}

	if !transformer.PowerTransformActive() {
		log.Warn().
			Strs("columns", []string{features.ColDewpointYeo, features.ColCloudYeo}).
			Msg("No power transform artifact, Yeo-Johnson columns pass raw values through")
	}

	log.Info().
		Str("artifacts", settings.ArtifactsDir).
		Str("version", manifest.Version).
		Time("trained_at", manifest.TrainedAt).
		Str("scaler", transformer.ScalerKind()).
		Bool("power_transform", transformer.PowerTransformActive()).
		Str("scorer", scorerName).
		Float64("threshold", predictor.Threshold()).
		Str("columns", strings.Join(features.Schema(), ",")).
		Msg("Rainfall model loaded")

	return &Runtime{
		Manifest:    manifest,
		Transformer: transformer,
		Predictor:   predictor,
		Drift:       drift,
		Scorer:      scorerName,
		remote:      remote,
		metrics:     m,
	}, nil
}
