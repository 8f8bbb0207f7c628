// Package metrics provides Prometheus metrics collection for the rainfall
// prediction service. It defines the validation, feature, prediction, drift,
// storage and HTTP metrics exposed via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Observation metrics
	ObservationsTotal prometheus.Counter     // Observations received for prediction or transform
	ValidationErrors  *prometheus.CounterVec // Rejected observation fields, by field

	// Feature pipeline metrics
	FeatureErrors       prometheus.Counter   // Schema and artifact errors raised by the transformer
	FeatureCalcDuration prometheus.Histogram // Duration of one full transform

	// ML and prediction metrics
	MLPredictions      *prometheus.CounterVec // Predictions made, by label
	MLFailures         *prometheus.CounterVec // Failed predictions, by stage
	MLModelAge         prometheus.Gauge       // Age of the loaded model in seconds
	MLLatency          prometheus.Histogram   // Classifier latency in seconds
	MLPredictionScores prometheus.Histogram   // Distribution of rain probabilities
	MLDriftScore       *prometheus.GaugeVec   // Latest drift z score, by feature
	MLDriftAlerts      *prometheus.CounterVec // Drift alerts raised, by feature

	// Storage metrics
	PredictionsStored prometheus.Counter // Predictions written to the prediction log
	StorageErrors     prometheus.Counter // Failed prediction log writes

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec   // Requests served, by route and status code
	HTTPDuration  *prometheus.HistogramVec // Request duration, by route
	StreamClients prometheus.Gauge         // Connected websocket stream clients

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// If the registerer is also a Gatherer it is used by FailureRate.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		ObservationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "observations_total",
			Help: "Total number of weather observations received",
		}),
		ValidationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "observation_validation_errors_total",
			Help: "Total number of rejected observation fields",
		}, []string{"field"}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature calculation errors",
		}),
		FeatureCalcDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feature_calc_duration_seconds",
			Help:    "Duration of the feature transform in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
		MLPredictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of rainfall predictions made",
		}, []string{"label"}),
		MLFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of rainfall prediction failures",
		}, []string{"stage"}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Classifier latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of predicted rain probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MLDriftScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ml_drift_score",
			Help: "Latest drift z score of a model input",
		}, []string{"feature"}),
		MLDriftAlerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_drift_alerts_total",
			Help: "Total number of drift alerts raised",
		}, []string{"feature"}),
		PredictionsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_stored_total",
			Help: "Total number of predictions written to the prediction log",
		}),
		StorageErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Total number of failed prediction log writes",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stream_clients",
			Help: "Number of connected websocket stream clients",
		}),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// StageValidation labels failures caused by rejected input. They are counted
// in ml_failures_total but are not model failures.
const StageValidation = "validation"

// FailureRate returns failed predictions over all prediction attempts, or 0
// if nothing has been recorded. Rejected input is left out.
func (m *Metrics) FailureRate() float64 {
	if m.gatherer == nil {
		return 0
	}
	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	var predictions, failures float64
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "ml_predictions_total":
			for _, metric := range mf.GetMetric() {
				predictions += metric.GetCounter().GetValue()
			}
		case "ml_failures_total":
		next:
			for _, metric := range mf.GetMetric() {
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == "stage" && lp.GetValue() == StageValidation {
						continue next
					}
				}
				failures += metric.GetCounter().GetValue()
			}
		}
	}

	if predictions+failures == 0 {
		return 0
	}
	return failures / (predictions + failures)
}
