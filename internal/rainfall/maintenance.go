package rainfall

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Maintenance refreshes runtime gauges that depend on wall-clock time.
type Maintenance struct {
	rt   *Runtime
	cron *cron.Cron
}

// NewMaintenance creates a stopped scheduler for rt.
func NewMaintenance(rt *Runtime) *Maintenance {
	return &Maintenance{
		rt: rt,
		// Prevent overlapping runs
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

// Start runs RunOnce on schedule, a standard cron spec or "@every <duration>".
func (m *Maintenance) Start(schedule string) error {
	if _, err := m.cron.AddFunc(schedule, m.RunOnce); err != nil {
		return fmt.Errorf("failed to add maintenance job: %w", err)
	}
	m.cron.Start()
	log.Info().Str("schedule", schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

// RunOnce updates the model age gauge and logs the drift scores.
func (m *Maintenance) RunOnce() {
	age := m.rt.Manifest.Age(clock.Now())
	if m.rt.metrics != nil {
		m.rt.metrics.MLModelAgeSet(age.Seconds())
	}

	ev := log.Debug().Str("version", m.rt.Manifest.Version).Dur("model_age", age)
	if status := m.rt.Drift.GetDriftStatus(); len(status) > 0 {
		ev = ev.Interface("drift", status)
	}
	ev.Msg("Maintenance run")
}
