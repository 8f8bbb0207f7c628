package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rainfall-predictor/internal/common"
	"rainfall-predictor/internal/features"
	"rainfall-predictor/internal/rainfall"
	"rainfall-predictor/internal/storage"
	"rainfall-predictor/internal/weather"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 64 << 10

// DefaultHistoryWindow is used when /predictions is called without from.
const DefaultHistoryWindow = 24 * time.Hour

// TransformResponse carries the engineered columns before and after scaling.
type TransformResponse struct {
	Columns    []string        `json:"columns"`
	Engineered features.Vector `json:"engineered"`
	Scaled     features.Vector `json:"scaled"`
}

// HistoryResponse lists stored predictions for a station.
type HistoryResponse struct {
	Station     string                     `json:"station"`
	From        time.Time                  `json:"from"`
	To          time.Time                  `json:"to"`
	Count       int                        `json:"count"`
	Predictions []storage.PredictionRecord `json:"predictions"`
}

// HealthResponse reports liveness and the model in use.
type HealthResponse struct {
	Status       string  `json:"status"`
	ModelVersion string  `json:"model_version"`
	Scorer       string  `json:"scorer"`
	Breaker      string  `json:"breaker,omitempty"`
	FailureRate  float64 `json:"failure_rate"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req rainfall.Request
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.svc.Predict(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var obs weather.Observation
	if !decodeBody(w, r, &obs) {
		return
	}

	engineered, scaled, err := s.svc.Columns(obs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TransformResponse{
		Columns:    features.Schema(),
		Engineered: engineered,
		Scaled:     scaled,
	})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Model())
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	station := q.Get("station")
	if station == "" {
		station = common.DefaultStationName
	}

	to := time.Now().UTC()
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid to: %v", err), Kind: KindRequest})
			return
		}
		to = t
	}
	from := to.Add(-DefaultHistoryWindow)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid from: %v", err), Kind: KindRequest})
			return
		}
		from = t
	}
	if from.After(to) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "from must not be after to", Kind: KindRequest})
		return
	}

	records, err := s.svc.History(station, from, to)
	if err != nil {
		if errors.Is(err, rainfall.ErrNoPredictionLog) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: KindRequest})
			return
		}
		log.Error().Err(err).Str("station", station).Msg("Failed to read prediction history")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: KindInternal})
		return
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Station:     station,
		From:        from,
		To:          to,
		Count:       len(records),
		Predictions: records,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	model := s.svc.Model()
	resp := HealthResponse{
		Status:       "ok",
		ModelVersion: model.Version,
		Scorer:       model.Scorer,
		Breaker:      model.Breaker,
	}
	// The service stays up while the model server is unreachable.
	if model.Breaker == "open" {
		resp.Status = "degraded"
	}
	if s.metrics != nil {
		resp.FailureRate = s.metrics.FailureRate()
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err), Kind: KindRequest})
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", body.Kind).Msg("Prediction request failed")
	}
	writeJSON(w, status, body)
}

// writeJSON encodes v before committing the status so an encoding failure
// still reaches the client as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: "failed to encode response", Kind: KindInternal})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
