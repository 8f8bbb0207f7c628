package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      map[string]int
	failures         int
	latencySum       float64
	latencyCount     int
	modelAge         float64
	predictionScores []float64
	driftScores      map[string]float64
	driftAlerts      map[string]int
}

func (m *MockMetrics) MLPredictionsInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[label]++
}

func (m *MockMetrics) MLFailuresInc(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLDriftScoreSet(feature string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.driftScores == nil {
		m.driftScores = make(map[string]float64)
	}
	m.driftScores[feature] = score
}

func (m *MockMetrics) MLDriftAlertsInc(feature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.driftAlerts == nil {
		m.driftAlerts = make(map[string]int)
	}
	m.driftAlerts[feature]++
}

// Predictions returns the count recorded for label.
func (m *MockMetrics) Predictions(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[label]
}

// Failures returns the number of recorded failures.
func (m *MockMetrics) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// DriftAlerts returns the alert count recorded for feature.
func (m *MockMetrics) DriftAlerts(feature string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driftAlerts[feature]
}
