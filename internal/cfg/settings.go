package cfg

import (
	"os"
	"strconv"
	"time"
)

// Settings is the resolved service configuration.
type Settings struct {
	ArtifactsDir   string
	ProbThreshold  float64
	ScorerURL      string
	ScorerTimeout  time.Duration
	Port           int
	DataPath       string
	DriftWindow    int
	DriftThreshold float64
	LogLevel       string
	LogFormat      string
}

// ConfigFile is the YAML layout read when CONFIG_FILE is set.
type ConfigFile struct {
	Model struct {
		ArtifactsDir  string   `yaml:"artifactsDir"`
		ProbThreshold *float64 `yaml:"probThreshold"`
		ScorerURL     string   `yaml:"scorerURL"`
		ScorerTimeout string   `yaml:"scorerTimeout"`
	} `yaml:"model"`

	Drift struct {
		Window    int     `yaml:"window"`
		Threshold float64 `yaml:"threshold"`
	} `yaml:"drift"`

	System struct {
		Port      int    `yaml:"port"`
		DataPath  string `yaml:"dataPath"`
		LogLevel  string `yaml:"logLevel"`
		LogFormat string `yaml:"logFormat"`
	} `yaml:"system"`
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
