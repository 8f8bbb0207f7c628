package ml

import (
	"testing"
	"time"

	"rainfall-predictor/internal/features"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(clock clockwork.Clock, metrics MetricsInterface) *DriftDetector {
	return NewDriftDetector(DriftDetectionConfig{
		Enabled:        true,
		FeatureNames:   features.Schema(),
		AlertThreshold: 3,
		WindowSize:     16,
		AlertCooldown:  time.Hour,
		Clock:          clock,
		Metrics:        metrics,
	})
}

func TestDriftDetector_NoScoreUntilWindowFull(t *testing.T) {
	dd := newTestDetector(clockwork.NewFakeClock(), nil)
	for i := 0; i < 15; i++ {
		assert.Empty(t, dd.Observe(schemaVector(5)))
	}
	assert.Empty(t, dd.GetDriftStatus())

	alerts := dd.Observe(schemaVector(5))
	require.Len(t, alerts, 1)
	assert.Equal(t, features.ColPressure, alerts[0].FeatureName)
	assert.Contains(t, dd.GetDriftStatus(), features.ColPressure)
}

func TestDriftDetector_StableInputsDoNotAlert(t *testing.T) {
	metrics := &MockMetrics{}
	dd := newTestDetector(clockwork.NewFakeClock(), metrics)
	for i := 0; i < 64; i++ {
		v := 0.5
		if i%2 == 0 {
			v = -0.5
		}
		assert.Empty(t, dd.Observe(schemaVector(v)))
	}
	status := dd.GetDriftStatus()
	assert.InDelta(t, 0, status[features.ColPressure], 1e-9)
	assert.Zero(t, metrics.DriftAlerts(features.ColPressure))
}

func TestDriftDetector_ShiftedMeanAlerts(t *testing.T) {
	metrics := &MockMetrics{}
	clock := clockwork.NewFakeClock()
	dd := newTestDetector(clock, metrics)

	var alerts []DriftAlert
	for i := 0; i < 16; i++ {
		alerts = dd.Observe(schemaVector(1))
	}
	require.Len(t, alerts, 1)
	a := alerts[0]
	// mean 1 against a standard error of 1/sqrt(16)
	assert.InDelta(t, 4.0, a.DriftScore, 1e-9)
	assert.InDelta(t, 1.0, a.WindowMean, 1e-9)
	assert.Equal(t, "medium", a.Severity)
	assert.Equal(t, clock.Now(), a.Timestamp)
	assert.Equal(t, 1, metrics.DriftAlerts(features.ColPressure))
}

func TestDriftDetector_Severity(t *testing.T) {
	dd := newTestDetector(clockwork.NewFakeClock(), nil)
	var alerts []DriftAlert
	for i := 0; i < 16; i++ {
		alerts = dd.Observe(schemaVector(3))
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, "critical", alerts[0].Severity)
	assert.Contains(t, alerts[0].Recommendation, "CRITICAL")
}

func TestDriftDetector_Cooldown(t *testing.T) {
	metrics := &MockMetrics{}
	clock := clockwork.NewFakeClock()
	dd := newTestDetector(clock, metrics)

	for i := 0; i < 16; i++ {
		dd.Observe(schemaVector(2))
	}
	assert.Equal(t, 1, metrics.DriftAlerts(features.ColPressure))

	assert.Empty(t, dd.Observe(schemaVector(2)))
	clock.Advance(30 * time.Minute)
	assert.Empty(t, dd.Observe(schemaVector(2)))

	clock.Advance(31 * time.Minute)
	assert.Len(t, dd.Observe(schemaVector(2)), 1)
	assert.Equal(t, 2, metrics.DriftAlerts(features.ColPressure))
}

func TestDriftDetector_Disabled(t *testing.T) {
	dd := NewDriftDetector(DriftDetectionConfig{FeatureNames: features.Schema(), WindowSize: 10})
	assert.False(t, dd.IsEnabled())
	for i := 0; i < 20; i++ {
		assert.Nil(t, dd.Observe(schemaVector(100)))
	}
	assert.Empty(t, dd.GetDriftStatus())
}

func TestDriftDetector_CustomBaseline(t *testing.T) {
	dd := NewDriftDetector(DriftDetectionConfig{
		Enabled:      true,
		FeatureNames: []string{features.ColPressure},
		Baseline: map[string]FeatureDistribution{
			features.ColPressure: {Mean: 1013, StandardDev: 8},
		},
		WindowSize: 16,
		Clock:      clockwork.NewFakeClock(),
	})

	for i := 0; i < 16; i++ {
		assert.Empty(t, dd.Observe(schemaVector(1013)))
	}
	assert.InDelta(t, 0, dd.GetDriftStatus()[features.ColPressure], 1e-9)
}
