package evaluate

import (
	"context"
	"fmt"
	"time"

	"rainfall-predictor/internal/ml"
	"rainfall-predictor/internal/rainfall"

	"github.com/rs/zerolog/log"
)

const (
	sweepStep  = 5 // percent
	sweepStart = 5
	sweepEnd   = 95
)

// Predictor scores one request.
type Predictor interface {
	Predict(ctx context.Context, req rainfall.Request) (rainfall.Result, error)
}

// Confusion is a binary confusion matrix with rain as the positive class.
type Confusion struct {
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	TrueNegative  int `json:"true_negative"`
	FalseNegative int `json:"false_negative"`
}

func (c *Confusion) add(actual, predicted bool) {
	switch {
	case actual && predicted:
		c.TruePositive++
	case actual:
		c.FalseNegative++
	case predicted:
		c.FalsePositive++
	default:
		c.TrueNegative++
	}
}

// Total returns the number of classified samples.
func (c Confusion) Total() int {
	return c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
}

func (c Confusion) Accuracy() float64 {
	return ratio(c.TruePositive+c.TrueNegative, c.Total())
}

func (c Confusion) Precision() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalsePositive)
}

func (c Confusion) Recall() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalseNegative)
}

func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Score summarises a confusion matrix at one threshold.
type Score struct {
	Threshold float64   `json:"threshold"`
	Confusion Confusion `json:"confusion"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
}

// Outcome is the prediction made for one sample.
type Outcome struct {
	Line        int      `json:"line"`
	Actual      bool     `json:"actual"`
	Probability float64  `json:"probability"`
	Label       ml.Label `json:"label"`
}

// Results holds an evaluation run.
type Results struct {
	Source       string        `json:"source,omitempty"`
	ModelVersion string        `json:"model_version"`
	Samples      int           `json:"samples"`
	Scored       int           `json:"scored"`
	Skipped      int           `json:"skipped"`
	Invalid      int           `json:"invalid"`
	Positives    int           `json:"positives"`
	Score        Score         `json:"score"`
	Sweep        []Score       `json:"sweep"`
	Best         Score         `json:"best"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	Outcomes     []Outcome     `json:"-"`
}

// Engine replays a dataset through a predictor.
type Engine struct {
	predictor Predictor
	threshold float64
}

// NewEngine creates an engine deciding at threshold.
func NewEngine(predictor Predictor, threshold float64) (*Engine, error) {
	if err := ml.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	return &Engine{predictor: predictor, threshold: threshold}, nil
}

// Run scores every sample. Samples failing validation are counted as invalid
// and skipped; any other prediction failure stops the run.
func (e *Engine) Run(ctx context.Context, ds *Dataset) (*Results, error) {
	start := time.Now()
	log.Info().
		Str("source", ds.Source).
		Int("samples", len(ds.Samples)).
		Float64("threshold", e.threshold).
		Msg("Starting evaluation")

	results := &Results{
		Source:    ds.Source,
		Samples:   len(ds.Samples) + ds.Skipped,
		Skipped:   ds.Skipped,
		StartTime: start,
		Outcomes:  make([]Outcome, 0, len(ds.Samples)),
	}

	threshold := e.threshold
	for _, sample := range ds.Samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := e.predictor.Predict(ctx, rainfall.Request{
			Observation: sample.Observation,
			Threshold:   &threshold,
		})
		if err != nil {
			if rainfall.IsValidation(err) {
				log.Debug().Err(err).Int("line", sample.Line).Msg("Skipping invalid sample")
				results.Invalid++
				continue
			}
			return nil, fmt.Errorf("line %d: %w", sample.Line, err)
		}

		results.ModelVersion = res.ModelVersion
		results.Outcomes = append(results.Outcomes, Outcome{
			Line:        sample.Line,
			Actual:      sample.Rain,
			Probability: res.Probability,
			Label:       res.Label,
		})
		if sample.Rain {
			results.Positives++
		}
	}
	results.Scored = len(results.Outcomes)

	results.Score = score(results.Outcomes, e.threshold)
	for pct := sweepStart; pct <= sweepEnd; pct += sweepStep {
		s := score(results.Outcomes, float64(pct)/100)
		results.Sweep = append(results.Sweep, s)
		if len(results.Sweep) == 1 || s.F1 > results.Best.F1 {
			results.Best = s
		}
	}
	results.Duration = time.Since(start)

	log.Info().
		Int("scored", results.Scored).
		Int("invalid", results.Invalid).
		Int("skipped", results.Skipped).
		Float64("accuracy", results.Score.Accuracy).
		Float64("f1", results.Score.F1).
		Float64("best_threshold", results.Best.Threshold).
		Msg("Evaluation completed")

	return results, nil
}

func score(outcomes []Outcome, threshold float64) Score {
	var c Confusion
	for _, o := range outcomes {
		c.add(o.Actual, ml.Decide(o.Probability, threshold) == ml.LabelRain)
	}
	return Score{
		Threshold: threshold,
		Confusion: c,
		Accuracy:  c.Accuracy(),
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
	}
}
