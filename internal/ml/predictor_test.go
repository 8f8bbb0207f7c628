package ml

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"rainfall-predictor/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	mu    sync.Mutex
	probs []float64
	err   error
	calls int
}

func (f *fakeScorer) PredictProba(_ context.Context, _ features.Vector) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.probs, nil
}

func rainScorer(p float64) *fakeScorer {
	return &fakeScorer{probs: []float64{1 - p, p}}
}

func schemaVector(values ...float64) features.Vector {
	names := features.Schema()
	cols := make([]features.Column, len(names))
	for i, n := range names {
		if i < len(values) {
			cols[i] = features.Column{Name: n, Value: values[i]}
		} else {
			cols[i] = features.Column{Name: n}
		}
	}
	return features.NewVector(cols)
}

func TestDecide_StrictlyAboveThreshold(t *testing.T) {
	testCases := []struct {
		name      string
		prob      float64
		threshold float64
		want      Label
	}{
		{"above", 0.61, 0.6, LabelRain},
		{"equal is no rain", 0.6, 0.6, LabelNoRain},
		{"below", 0.59, 0.6, LabelNoRain},
		{"zero threshold zero prob", 0, 0, LabelNoRain},
		{"zero threshold tiny prob", 1e-9, 0, LabelRain},
		{"one threshold never rains", 1, 1, LabelNoRain},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.prob, tc.threshold))
		})
	}
}

func TestNewPredictor(t *testing.T) {
	p, err := NewPredictor(rainScorer(0.5))
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, p.Threshold())

	p, err = NewPredictor(rainScorer(0.5), WithThreshold(0.6))
	require.NoError(t, err)
	assert.Equal(t, 0.6, p.Threshold())

	_, err = NewPredictor(nil)
	assert.Error(t, err)

	for _, bad := range []float64{-0.1, 1.1, math.NaN()} {
		_, err = NewPredictor(rainScorer(0.5), WithThreshold(bad))
		assert.Error(t, err, "threshold %v", bad)
	}
}

func TestPredictor_Predict(t *testing.T) {
	metrics := &MockMetrics{}
	p, err := NewPredictor(rainScorer(0.61), WithThreshold(0.6), WithMetrics(metrics))
	require.NoError(t, err)

	pred, err := p.Predict(context.Background(), schemaVector())
	require.NoError(t, err)
	assert.Equal(t, LabelRain, pred.Label)
	assert.True(t, pred.Rain())
	assert.InDelta(t, 0.61, pred.Probability, 1e-12)
	assert.Equal(t, 0.6, pred.Threshold)

	assert.Equal(t, 1, metrics.Predictions(string(LabelRain)))
	assert.Equal(t, 0, metrics.Failures())
	assert.Equal(t, 1, metrics.latencyCount)
	assert.Equal(t, []float64{0.61}, metrics.predictionScores)
}

func TestPredictor_ProbabilityEqualToThreshold(t *testing.T) {
	p, err := NewPredictor(rainScorer(0.6), WithThreshold(0.6))
	require.NoError(t, err)

	pred, err := p.Predict(context.Background(), schemaVector())
	require.NoError(t, err)
	assert.Equal(t, LabelNoRain, pred.Label)
	assert.False(t, pred.Rain())
}

func TestPredictor_PredictWithThreshold(t *testing.T) {
	p, err := NewPredictor(rainScorer(0.55))
	require.NoError(t, err)

	pred, err := p.PredictWithThreshold(context.Background(), schemaVector(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, LabelRain, pred.Label)

	pred, err = p.PredictWithThreshold(context.Background(), schemaVector(), 0.7)
	require.NoError(t, err)
	assert.Equal(t, LabelNoRain, pred.Label)
	assert.Equal(t, 0.7, pred.Threshold)

	_, err = p.PredictWithThreshold(context.Background(), schemaVector(), 2)
	assert.Error(t, err)
}

func TestPredictor_ScorerFailureIsNotALabel(t *testing.T) {
	metrics := &MockMetrics{}
	scorer := &fakeScorer{err: errors.New("model unavailable")}
	p, err := NewPredictor(scorer, WithMetrics(metrics))
	require.NoError(t, err)

	pred, err := p.Predict(context.Background(), schemaVector())
	require.Error(t, err)
	assert.Equal(t, Prediction{}, pred)

	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "score", ie.Op)
	assert.Contains(t, err.Error(), "model unavailable")

	assert.Equal(t, 1, metrics.Failures())
	assert.Equal(t, 0, metrics.Predictions(string(LabelRain)))
	assert.Equal(t, 0, metrics.Predictions(string(LabelNoRain)))
}

func TestPredictor_ScorerInferenceErrorKeepsOp(t *testing.T) {
	scorer := &fakeScorer{err: inferenceErrorf("remote", "connection refused")}
	p, err := NewPredictor(scorer)
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), schemaVector())
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "remote", ie.Op)
}

func TestPredictor_InvalidScorerOutput(t *testing.T) {
	testCases := []struct {
		name  string
		probs []float64
	}{
		{"no output", nil},
		{"single class", []float64{0.3}},
		{"nan", []float64{0.5, math.NaN()}},
		{"above one", []float64{-0.2, 1.2}},
		{"negative", []float64{1.1, -0.1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := &MockMetrics{}
			p, err := NewPredictor(&fakeScorer{probs: tc.probs}, WithMetrics(metrics))
			require.NoError(t, err)

			_, err = p.Predict(context.Background(), schemaVector())
			var ie *InferenceError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, "output", ie.Op)
			assert.Equal(t, 1, metrics.Failures())
		})
	}
}

func TestPredictor_ConcurrentUse(t *testing.T) {
	metrics := &MockMetrics{}
	scorer := rainScorer(0.8)
	p, err := NewPredictor(scorer, WithMetrics(metrics))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pred, err := p.Predict(context.Background(), schemaVector())
			assert.NoError(t, err)
			assert.Equal(t, LabelRain, pred.Label)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, scorer.calls)
	assert.Equal(t, 50, metrics.Predictions(string(LabelRain)))
}
