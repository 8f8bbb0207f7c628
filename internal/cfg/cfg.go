package cfg

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"rainfall-predictor/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const defaultScorerTimeout = 5 * time.Second

// Load resolves Settings. A .env file in the working directory is loaded
// first; CONFIG_FILE selects a YAML file whose values environment
// variables override; otherwise only the environment is used.
func Load() (Settings, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	scorerTimeout := defaultScorerTimeout
	if config.Model.ScorerTimeout != "" {
		scorerTimeout, err = time.ParseDuration(config.Model.ScorerTimeout)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid scorer timeout %q: %w", config.Model.ScorerTimeout, err)
		}
	}

	threshold := common.DefaultProbThreshold
	if config.Model.ProbThreshold != nil {
		threshold = *config.Model.ProbThreshold
	}

	settings := Settings{
		ArtifactsDir:   getEnvOrDefault(common.EnvArtifactsDir, orString(config.Model.ArtifactsDir, common.DefaultArtifactsDir)),
		ProbThreshold:  getFloatOrDefault(common.EnvProbThreshold, threshold),
		ScorerURL:      getEnvOrDefault(common.EnvScorerURL, config.Model.ScorerURL),
		ScorerTimeout:  getDurationOrDefault(common.EnvScorerTimeout, scorerTimeout),
		Port:           getIntOrDefault(common.EnvPort, orInt(config.System.Port, common.DefaultPort)),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		DriftWindow:    getIntOrDefault(common.EnvDriftWindow, orInt(config.Drift.Window, common.DefaultDriftWindow)),
		DriftThreshold: getFloatOrDefault(common.EnvDriftThreshold, orFloat(config.Drift.Threshold, common.DefaultDriftThreshold)),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, orString(config.System.LogFormat, common.DefaultLogFormat)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ArtifactsDir:   getEnvOrDefault(common.EnvArtifactsDir, common.DefaultArtifactsDir),
		ProbThreshold:  getFloatOrDefault(common.EnvProbThreshold, common.DefaultProbThreshold),
		ScorerURL:      os.Getenv(common.EnvScorerURL), // optional
		ScorerTimeout:  getDurationOrDefault(common.EnvScorerTimeout, defaultScorerTimeout),
		Port:           getIntOrDefault(common.EnvPort, common.DefaultPort),
		DataPath:       os.Getenv(common.EnvDataPath), // optional
		DriftWindow:    getIntOrDefault(common.EnvDriftWindow, common.DefaultDriftWindow),
		DriftThreshold: getFloatOrDefault(common.EnvDriftThreshold, common.DefaultDriftThreshold),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.ArtifactsDir) == "" {
		return fmt.Errorf("artifacts directory cannot be empty")
	}

	if math.IsNaN(settings.ProbThreshold) ||
		settings.ProbThreshold < common.MinProbThreshold || settings.ProbThreshold > common.MaxProbThreshold {
		return fmt.Errorf("probability threshold must be between 0 and 1, got %f", settings.ProbThreshold)
	}

	if settings.ScorerURL != "" && !strings.HasPrefix(settings.ScorerURL, "http://") && !strings.HasPrefix(settings.ScorerURL, "https://") {
		return fmt.Errorf("scorer URL must be an http(s) URL, got %q", settings.ScorerURL)
	}
	if settings.ScorerTimeout < 100*time.Millisecond || settings.ScorerTimeout > time.Minute {
		return fmt.Errorf("scorer timeout must be between 100ms and 1m, got %v", settings.ScorerTimeout)
	}

	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}

	if settings.DriftWindow < common.MinDriftWindow || settings.DriftWindow > common.MaxDriftWindow {
		return fmt.Errorf("drift window must be between %d and %d, got %d", common.MinDriftWindow, common.MaxDriftWindow, settings.DriftWindow)
	}
	if settings.DriftThreshold <= 0 {
		return fmt.Errorf("drift threshold must be positive, got %f", settings.DriftThreshold)
	}

	switch strings.ToLower(settings.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got %q", settings.LogLevel)
	}
	switch settings.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	return nil
}
