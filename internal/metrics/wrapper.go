package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces used by the
// features, ml, storage and api packages.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Metrics returns the wrapped metrics.
func (w *MetricsWrapper) Metrics() *Metrics { return w.m }

func (w *MetricsWrapper) ObservationsInc() {
	w.m.ObservationsTotal.Inc()
}

func (w *MetricsWrapper) ValidationErrorInc(field string) {
	w.m.ValidationErrors.WithLabelValues(field).Inc()
}

// features.MetricsTracker

func (w *MetricsWrapper) FeatureErrorsInc() {
	w.m.FeatureErrors.Inc()
}

func (w *MetricsWrapper) FeatureCalcDuration(d time.Duration) {
	w.m.FeatureCalcDuration.Observe(d.Seconds())
}

// ml.MetricsInterface

func (w *MetricsWrapper) MLPredictionsInc(label string) {
	w.m.MLPredictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) MLFailuresInc(stage string) {
	w.m.MLFailures.WithLabelValues(stage).Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) {
	w.m.MLPredictionScores.Observe(v)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.MLModelAge.Set(v)
}

func (w *MetricsWrapper) MLDriftScoreSet(feature string, score float64) {
	w.m.MLDriftScore.WithLabelValues(feature).Set(score)
}

func (w *MetricsWrapper) MLDriftAlertsInc(feature string) {
	w.m.MLDriftAlerts.WithLabelValues(feature).Inc()
}

// storage

func (w *MetricsWrapper) PredictionsStored() MetricsCounter {
	return &CounterWrapper{w.m.PredictionsStored}
}

func (w *MetricsWrapper) StorageErrors() MetricsCounter {
	return &CounterWrapper{w.m.StorageErrors}
}

// api

func (w *MetricsWrapper) FailureRate() float64 {
	return w.m.FailureRate()
}

func (w *MetricsWrapper) StreamClients() MetricsGauge {
	return &GaugeWrapper{w.m.StreamClients}
}

func (w *MetricsWrapper) ObserveRequest(route string, code int, d time.Duration) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}
