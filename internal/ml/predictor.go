package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"rainfall-predictor/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc(label string)
	MLFailuresInc(stage string)
	MLLatencyObserve(float64)
	MLPredictionScoresObserve(float64)
	MLModelAgeSet(float64)
	MLDriftScoreSet(feature string, score float64)
	MLDriftAlertsInc(feature string)
}

// Label is the binary rainfall outcome.
type Label string

const (
	LabelRain   Label = "rain"
	LabelNoRain Label = "no-rain"
)

// DefaultThreshold is used when no threshold option is given.
const DefaultThreshold = 0.5

// RainIndex is the position of the rain class in scorer output.
const RainIndex = 1

// Prediction is the outcome of one scored observation.
type Prediction struct {
	Label       Label   `json:"label"`
	Probability float64 `json:"probability"`
	Threshold   float64 `json:"threshold"`
}

// Rain reports whether the label is rain.
func (p Prediction) Rain() bool { return p.Label == LabelRain }

// Decide labels a rain probability. Rain requires a probability strictly
// above the threshold.
func Decide(probability, threshold float64) Label {
	if probability > threshold {
		return LabelRain
	}
	return LabelNoRain
}

// Predictor is the prediction invoker.
type Predictor struct {
	scorer    Scorer
	threshold float64
	metrics   MetricsInterface
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithThreshold sets the decision threshold.
func WithThreshold(t float64) Option {
	return func(p *Predictor) { p.threshold = t }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m MetricsInterface) Option {
	return func(p *Predictor) { p.metrics = m }
}

// NewPredictor wraps a scorer.
func NewPredictor(scorer Scorer, opts ...Option) (*Predictor, error) {
	if scorer == nil {
		return nil, errors.New("scorer is required")
	}
	p := &Predictor{scorer: scorer, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(p)
	}
	if err := ValidateThreshold(p.threshold); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidateThreshold checks that t is a probability.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", t)
	}
	return nil
}

// Threshold returns the configured decision threshold.
func (p *Predictor) Threshold() float64 { return p.threshold }

// PredictProba returns the probability of rain for v.
func (p *Predictor) PredictProba(ctx context.Context, v features.Vector) (float64, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	probs, err := p.scorer.PredictProba(ctx, v)
	if err != nil {
		p.failure()
		var ie *InferenceError
		if !errors.As(err, &ie) {
			err = &InferenceError{Op: "score", Err: err}
		}
		log.Error().Err(err).Int("features", v.Len()).Msg("Classifier call failed")
		return 0, err
	}

	if len(probs) <= RainIndex {
		p.failure()
		return 0, inferenceErrorf("output", "expected at least %d class probabilities, got %d", RainIndex+1, len(probs))
	}
	for i, prob := range probs {
		if math.IsNaN(prob) || prob < 0 || prob > 1 {
			p.failure()
			log.Error().
				Int("prob_index", i).
				Float64("prob_value", prob).
				Msg("Invalid probability value in prediction")
			return 0, inferenceErrorf("output", "invalid probability %d: %v", i, prob)
		}
	}

	rain := probs[RainIndex]
	if p.metrics != nil {
		p.metrics.MLPredictionScoresObserve(rain)
	}
	return rain, nil
}

// Predict implements PredictorInterface.
func (p *Predictor) Predict(ctx context.Context, v features.Vector) (Prediction, error) {
	return p.PredictWithThreshold(ctx, v, p.threshold)
}

// PredictWithThreshold implements PredictorInterface.
func (p *Predictor) PredictWithThreshold(ctx context.Context, v features.Vector, threshold float64) (Prediction, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return Prediction{}, err
	}

	prob, err := p.PredictProba(ctx, v)
	if err != nil {
		return Prediction{}, err
	}

	label := Decide(prob, threshold)
	if p.metrics != nil {
		p.metrics.MLPredictionsInc(string(label))
	}

	log.Debug().
		Float64("probability", prob).
		Float64("threshold", threshold).
		Str("label", string(label)).
		Msg("Prediction successful")

	return Prediction{Label: label, Probability: prob, Threshold: threshold}, nil
}

func (p *Predictor) failure() {
	if p.metrics != nil {
		p.metrics.MLFailuresInc("inference")
	}
}
