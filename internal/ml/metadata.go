package ml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rainfall-predictor/internal/common"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Manifest describes one trained artifact set.
type Manifest struct {
	Version     string    `yaml:"version" json:"version"`
	TrainedAt   time.Time `yaml:"trained_at" json:"trained_at"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`

	Model          string `yaml:"model" json:"model"`
	Polynomial     string `yaml:"polynomial" json:"polynomial"`
	Scaler         string `yaml:"scaler" json:"scaler"`
	PowerTransform string `yaml:"power_transform" json:"power_transform"`

	dir string
}

// LoadManifest reads manifest.yaml from dir. Without a manifest the default
// file names are used and the training time is taken from the model file.
func LoadManifest(dir string) (Manifest, error) {
	m := Manifest{dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, common.ManifestFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("parse manifest: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("dir", dir).Msg("Artifact manifest not found, using default file names")
	default:
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	if m.Version == "" {
		m.Version = "unknown"
	}
	if m.Model == "" {
		m.Model = common.DefaultModelFile
	}
	if m.Polynomial == "" {
		m.Polynomial = common.DefaultPolyFile
	}
	if m.Scaler == "" {
		m.Scaler = common.DefaultScalerFile
	}
	if m.PowerTransform == "" {
		m.PowerTransform = common.DefaultPowerFile
	}
	if m.TrainedAt.IsZero() {
		if info, err := os.Stat(m.Path(m.Model)); err == nil {
			m.TrainedAt = info.ModTime()
		}
	}
	return m, nil
}

// Path resolves an artifact file name against the manifest directory.
func (m Manifest) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.dir, name)
}

// Age returns how long ago the artifacts were trained.
func (m Manifest) Age(now time.Time) time.Duration {
	if m.TrainedAt.IsZero() {
		return 0
	}
	return now.Sub(m.TrainedAt)
}
