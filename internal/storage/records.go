package storage

import (
	"fmt"
	"math"
	"time"

	"rainfall-predictor/internal/features"
	"rainfall-predictor/internal/weather"
)

const predictionsBucket = "predictions"

// PredictionRecord is one served prediction with the inputs that produced it.
type PredictionRecord struct {
	ID           string          `json:"id"`
	Station      string          `json:"station"`
	Timestamp    time.Time       `json:"timestamp"`
	Observation  weather.Reading `json:"observation"`
	Features     features.Vector `json:"features"`
	Label        string          `json:"label"`
	Probability  float64         `json:"probability"`
	Threshold    float64         `json:"threshold"`
	ModelVersion string          `json:"model_version"`
}

// recordKey is station_<nanos>_<seq>. Zero padding keeps byte order equal to
// time order, and the bucket sequence separates records sharing a timestamp.
func recordKey(station string, ts time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s_%s_%020d", station, padNanos(ts), seq))
}

// rangeKeys returns the first and last possible keys for a station between
// start and end inclusive.
func rangeKeys(station string, start, end time.Time) (first, last []byte) {
	return recordKey(station, start, 0), recordKey(station, end, math.MaxUint64)
}
