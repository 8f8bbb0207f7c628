package ml

import (
	"fmt"
	"math"
	"sync"
	"time"

	"rainfall-predictor/internal/features"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DriftDetector watches the scaled feature vectors sent to the classifier and
// raises an alert when a column's recent mean moves away from its training
// baseline. The score is a z statistic of the window mean against the
// baseline standard error.
type DriftDetector struct {
	mu             sync.RWMutex
	enabled        bool
	featureNames   []string
	baseline       map[string]FeatureDistribution
	windows        map[string]*window
	scores         map[string]float64
	alertThreshold float64
	windowSize     int
	alertCooldown  time.Duration
	lastAlert      map[string]time.Time
	clock          clockwork.Clock
	metrics        MetricsInterface
}

// FeatureDistribution is the expected distribution of one column.
type FeatureDistribution struct {
	Mean        float64 `json:"mean"`
	StandardDev float64 `json:"standard_dev"`
}

// DriftAlert represents a drift detection alert
type DriftAlert struct {
	Timestamp      time.Time `json:"timestamp"`
	FeatureName    string    `json:"feature_name"`
	DriftScore     float64   `json:"drift_score"`
	WindowMean     float64   `json:"window_mean"`
	Threshold      float64   `json:"threshold"`
	Severity       string    `json:"severity"`
	Recommendation string    `json:"recommendation"`
}

// DriftDetectionConfig configures drift detection
type DriftDetectionConfig struct {
	Enabled        bool
	FeatureNames   []string
	Baseline       map[string]FeatureDistribution
	AlertThreshold float64
	WindowSize     int
	AlertCooldown  time.Duration
	Clock          clockwork.Clock
	Metrics        MetricsInterface
}

type window struct {
	samples []float64
	next    int
	full    bool
	sum     float64
}

func (w *window) add(x float64) {
	if w.full {
		w.sum -= w.samples[w.next]
	}
	w.samples[w.next] = x
	w.sum += x
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *window) mean() float64 { return w.sum / float64(len(w.samples)) }

// NewDriftDetector creates a new drift detector. Columns without an explicit
// baseline are assumed standardized: mean 0, standard deviation 1.
func NewDriftDetector(config DriftDetectionConfig) *DriftDetector {
	dd := &DriftDetector{
		enabled:        config.Enabled,
		featureNames:   config.FeatureNames,
		baseline:       make(map[string]FeatureDistribution),
		windows:        make(map[string]*window),
		scores:         make(map[string]float64),
		alertThreshold: config.AlertThreshold,
		windowSize:     config.WindowSize,
		alertCooldown:  config.AlertCooldown,
		lastAlert:      make(map[string]time.Time),
		clock:          config.Clock,
		metrics:        config.Metrics,
	}

	if dd.alertThreshold <= 0 {
		dd.alertThreshold = 3.0
	}
	if dd.windowSize <= 0 {
		dd.windowSize = 500
	}
	if dd.alertCooldown == 0 {
		dd.alertCooldown = time.Hour
	}
	if dd.clock == nil {
		dd.clock = clockwork.NewRealClock()
	}

	for _, name := range config.FeatureNames {
		base, ok := config.Baseline[name]
		if !ok {
			base = FeatureDistribution{Mean: 0, StandardDev: 1}
		}
		if base.StandardDev <= 0 {
			log.Warn().Str("feature", name).Msg("Drift baseline has no spread, column not monitored")
			continue
		}
		dd.baseline[name] = base
		dd.windows[name] = &window{samples: make([]float64, dd.windowSize)}
	}

	return dd
}

// Observe records one scaled vector and returns any alerts it triggers.
func (dd *DriftDetector) Observe(v features.Vector) []DriftAlert {
	if !dd.enabled {
		return nil
	}

	dd.mu.Lock()
	defer dd.mu.Unlock()

	now := dd.clock.Now()
	var alerts []DriftAlert
	for _, col := range v.Columns() {
		w, ok := dd.windows[col.Name]
		if !ok {
			continue
		}
		w.add(col.Value)
		if !w.full {
			continue
		}

		base := dd.baseline[col.Name]
		mean := w.mean()
		stderr := base.StandardDev / math.Sqrt(float64(dd.windowSize))
		score := math.Abs(mean-base.Mean) / stderr
		dd.scores[col.Name] = score
		if dd.metrics != nil {
			dd.metrics.MLDriftScoreSet(col.Name, score)
		}

		if score <= dd.alertThreshold {
			continue
		}
		if last, ok := dd.lastAlert[col.Name]; ok && now.Sub(last) < dd.alertCooldown {
			continue
		}
		dd.lastAlert[col.Name] = now

		severity := "medium"
		if score > dd.alertThreshold*2 {
			severity = "high"
		}
		if score > dd.alertThreshold*3 {
			severity = "critical"
		}
		alert := DriftAlert{
			Timestamp:      now,
			FeatureName:    col.Name,
			DriftScore:     score,
			WindowMean:     mean,
			Threshold:      dd.alertThreshold,
			Severity:       severity,
			Recommendation: recommendation(severity, col.Name),
		}
		alerts = append(alerts, alert)

		if dd.metrics != nil {
			dd.metrics.MLDriftAlertsInc(col.Name)
		}
		log.Warn().
			Str("feature", col.Name).
			Float64("score", score).
			Float64("window_mean", mean).
			Str("severity", severity).
			Msg("Feature drift detected")
	}
	return alerts
}

func recommendation(severity, featureName string) string {
	switch severity {
	case "critical":
		return fmt.Sprintf("CRITICAL: Feature '%s' shows severe drift. Check the weather source and consider retraining.", featureName)
	case "high":
		return fmt.Sprintf("HIGH: Feature '%s' shows significant drift. Schedule model retraining.", featureName)
	default:
		return fmt.Sprintf("MEDIUM: Feature '%s' shows moderate drift. Monitor closely.", featureName)
	}
}

// GetDriftStatus returns the latest score of every monitored column that
// has a full window.
func (dd *DriftDetector) GetDriftStatus() map[string]float64 {
	dd.mu.RLock()
	defer dd.mu.RUnlock()

	status := make(map[string]float64, len(dd.scores))
	for k, v := range dd.scores {
		status[k] = v
	}
	return status
}

// IsEnabled returns whether drift detection is enabled
func (dd *DriftDetector) IsEnabled() bool {
	return dd.enabled
}
