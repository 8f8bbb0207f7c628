package rainfall

import (
	"context"
	"errors"
	"time"

	"rainfall-predictor/internal/common"
	"rainfall-predictor/internal/features"
	"rainfall-predictor/internal/ml"
	"rainfall-predictor/internal/storage"
	"rainfall-predictor/internal/weather"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoPredictionLog is returned by History when no prediction log is
// configured.
var ErrNoPredictionLog = errors.New("prediction log is not configured")

// PredictionLog persists served predictions.
type PredictionLog interface {
	StorePrediction(rec storage.PredictionRecord) error
	GetPredictionsInRange(station string, start, end time.Time) ([]storage.PredictionRecord, error)
}

// Request is one observation to score. Station and Threshold are optional.
type Request struct {
	weather.Observation
	Station   string   `json:"station,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Result is a served prediction.
type Result struct {
	ID           string          `json:"id"`
	Station      string          `json:"station"`
	Timestamp    time.Time       `json:"timestamp"`
	Label        ml.Label        `json:"label"`
	Rain         bool            `json:"rain"`
	Probability  float64         `json:"probability"`
	Threshold    float64         `json:"threshold"`
	ModelVersion string          `json:"model_version"`
	Features     features.Vector `json:"features"`
	DriftAlerts  []ml.DriftAlert `json:"drift_alerts,omitempty"`
}

// ModelInfo describes the loaded artifacts.
type ModelInfo struct {
	Version        string             `json:"version"`
	TrainedAt      time.Time          `json:"trained_at"`
	Description    string             `json:"description,omitempty"`
	Scorer         string             `json:"scorer"`
	Breaker        string             `json:"breaker,omitempty"` // remote scorer circuit state
	Scaler         string             `json:"scaler"`
	PowerTransform bool               `json:"power_transform"`
	Threshold      float64            `json:"threshold"`
	Columns        []string           `json:"columns"`
	Drift          map[string]float64 `json:"drift,omitempty"`
}

// Service runs requests against a Runtime.
type Service struct {
	rt  *Runtime
	log PredictionLog
}

// NewService creates a service. predictions may be nil.
func NewService(rt *Runtime, predictions PredictionLog) *Service {
	return &Service{rt: rt, log: predictions}
}

// IsValidation reports whether err is an observation validation failure, as
// opposed to a transform or inference failure.
func IsValidation(err error) bool {
	var ve *weather.ValidationError
	return errors.As(err, &ve)
}

// Predict validates, transforms and scores one observation.
func (s *Service) Predict(ctx context.Context, req Request) (Result, error) {
	if req.Threshold != nil {
		if err := ml.ValidateThreshold(*req.Threshold); err != nil {
			s.failure("validation")
			return Result{}, &weather.ValidationError{Fields: []weather.FieldError{{
				Field:  "threshold",
				Value:  req.Threshold,
				Reason: "must be between 0 and 1",
			}}}
		}
	}

	reading, vec, err := s.transform(req.Observation)
	if err != nil {
		return Result{}, err
	}

	var pred ml.Prediction
	if req.Threshold != nil {
		pred, err = s.rt.Predictor.PredictWithThreshold(ctx, vec, *req.Threshold)
	} else {
		pred, err = s.rt.Predictor.Predict(ctx, vec)
	}
	if err != nil {
		return Result{}, err
	}

	station := req.Station
	if station == "" {
		station = common.DefaultStationName
	}
	res := Result{
		ID:           uuid.NewString(),
		Station:      station,
		Timestamp:    clock.Now().UTC(),
		Label:        pred.Label,
		Rain:         pred.Rain(),
		Probability:  pred.Probability,
		Threshold:    pred.Threshold,
		ModelVersion: s.rt.Manifest.Version,
		Features:     vec,
		DriftAlerts:  s.rt.Drift.Observe(vec),
	}

	s.record(reading, res)
	return res, nil
}

// Transform validates an observation and returns the scaled feature vector.
func (s *Service) Transform(obs weather.Observation) (features.Vector, error) {
	_, vec, err := s.transform(obs)
	return vec, err
}

func (s *Service) transform(obs weather.Observation) (weather.Reading, features.Vector, error) {
	reading, err := s.validate(obs)
	if err != nil {
		return weather.Reading{}, features.Vector{}, err
	}

	vec, err := s.rt.Transformer.Transform(reading)
	if err != nil {
		s.failure("transform")
		log.Error().Err(err).Msg("Feature transform failed")
		return weather.Reading{}, features.Vector{}, err
	}
	return reading, vec, nil
}

// Engineer validates an observation and returns the unscaled columns.
func (s *Service) Engineer(obs weather.Observation) (features.Vector, error) {
	reading, err := s.validate(obs)
	if err != nil {
		return features.Vector{}, err
	}

	vec, err := s.rt.Transformer.Engineer(reading)
	if err != nil {
		s.failure("transform")
		log.Error().Err(err).Msg("Feature engineering failed")
		return features.Vector{}, err
	}
	return vec, nil
}

// Columns validates an observation once and returns both the unscaled and
// the scaled columns.
func (s *Service) Columns(obs weather.Observation) (engineered, scaled features.Vector, err error) {
	reading, err := s.validate(obs)
	if err != nil {
		return features.Vector{}, features.Vector{}, err
	}

	engineered, err = s.rt.Transformer.Engineer(reading)
	if err == nil {
		scaled, err = s.rt.Transformer.Transform(reading)
	}
	if err != nil {
		s.failure("transform")
		log.Error().Err(err).Msg("Feature transform failed")
		return features.Vector{}, features.Vector{}, err
	}
	return engineered, scaled, nil
}

// History returns stored predictions for a station.
func (s *Service) History(station string, start, end time.Time) ([]storage.PredictionRecord, error) {
	if s.log == nil {
		return nil, ErrNoPredictionLog
	}
	return s.log.GetPredictionsInRange(station, start, end)
}

// Model describes the loaded artifacts.
func (s *Service) Model() ModelInfo {
	info := ModelInfo{
		Version:        s.rt.Manifest.Version,
		TrainedAt:      s.rt.Manifest.TrainedAt,
		Description:    s.rt.Manifest.Description,
		Scorer:         s.rt.Scorer,
		Scaler:         s.rt.Transformer.ScalerKind(),
		PowerTransform: s.rt.Transformer.PowerTransformActive(),
		Threshold:      s.rt.Predictor.Threshold(),
		Columns:        features.Schema(),
		Drift:          s.rt.Drift.GetDriftStatus(),
	}
	if s.rt.remote != nil {
		info.Breaker = s.rt.remote.State()
	}
	return info
}

func (s *Service) validate(obs weather.Observation) (weather.Reading, error) {
	m := s.rt.metrics
	if m != nil {
		m.ObservationsInc()
	}

	reading, err := obs.Validate()
	if err != nil {
		var ve *weather.ValidationError
		if errors.As(err, &ve) {
			fields := make([]string, len(ve.Fields))
			for i, f := range ve.Fields {
				fields[i] = f.Field
				if m != nil {
					m.ValidationErrorInc(f.Field)
				}
			}
			log.Debug().Strs("fields", fields).Msg("Observation rejected")
		}
		s.failure("validation")
		return weather.Reading{}, err
	}
	return reading, nil
}

func (s *Service) record(reading weather.Reading, res Result) {
	if s.log == nil {
		return
	}

	err := s.log.StorePrediction(storage.PredictionRecord{
		ID:           res.ID,
		Station:      res.Station,
		Timestamp:    res.Timestamp,
		Observation:  reading,
		Features:     res.Features,
		Label:        string(res.Label),
		Probability:  res.Probability,
		Threshold:    res.Threshold,
		ModelVersion: res.ModelVersion,
	})

	m := s.rt.metrics
	if err != nil {
		log.Error().Err(err).Str("id", res.ID).Str("station", res.Station).Msg("Failed to store prediction")
		if m != nil {
			m.StorageErrors().Inc()
		}
		return
	}
	if m != nil {
		m.PredictionsStored().Inc()
	}
}

func (s *Service) failure(stage string) {
	if s.rt.metrics != nil {
		s.rt.metrics.MLFailuresInc(stage)
	}
}
