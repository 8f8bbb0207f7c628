package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rainfall-predictor/internal/features"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerTripAfter is the number of consecutive transport or 5xx failures
// that opens the circuit to the model server.
const BreakerTripAfter = 5

var errServerError = errors.New("server error")

// RemoteScorer delegates scoring to a model server over HTTP.
type RemoteScorer struct {
	url     string
	rest    *resty.Client
	circuit *gobreaker.CircuitBreaker
}

// ScoreRequest is the body posted to the model server.
type ScoreRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
}

// ScoreResponse is the model server reply.
type ScoreResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Error         string    `json:"error,omitempty"`
}

// NewRemoteScorer creates a scorer posting to url.
func NewRemoteScorer(url string, timeout time.Duration) *RemoteScorer {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "model-server",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= BreakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Model server circuit changed state")
		},
	})

	return &RemoteScorer{url: url, rest: r, circuit: cb}
}

// PredictProba implements Scorer. Client errors and error bodies are
// returned without counting against the circuit.
func (s *RemoteScorer) PredictProba(ctx context.Context, v features.Vector) ([]float64, error) {
	resp := &ScoreResponse{}
	result, err := s.circuit.Execute(func() (interface{}, error) {
		r, err := s.rest.R().
			SetContext(ctx).
			SetBody(ScoreRequest{Features: v.Values(), FeatureNames: v.Names()}).
			SetResult(resp).
			SetError(resp).
			Post(s.url)
		if err != nil {
			return nil, err
		}
		if r.StatusCode() >= 500 {
			return r, fmt.Errorf("%w: %d", errServerError, r.StatusCode())
		}
		return r, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn().Str("url", s.url).Msg("Model server circuit open, request rejected")
		return nil, inferenceErrorf("remote", "circuit breaker open: %v", err)
	}

	r, _ := result.(*resty.Response)
	if r == nil {
		log.Error().Err(err).Str("url", s.url).Msg("Remote scorer request failed")
		return nil, &InferenceError{Op: "remote", Err: err}
	}
	if r.IsError() {
		msg := resp.Error
		if msg == "" {
			msg = r.String()
		}
		log.Error().Int("status", r.StatusCode()).Str("url", s.url).Str("error", msg).Msg("Remote scorer returned error")
		return nil, inferenceErrorf("remote", "model server returned %d: %s", r.StatusCode(), msg)
	}
	if resp.Error != "" {
		return nil, &InferenceError{Op: "remote", Err: errors.New(resp.Error)}
	}
	return resp.Probabilities, nil
}

// State reports the circuit state, closed, half-open or open.
func (s *RemoteScorer) State() string {
	return s.circuit.State().String()
}
