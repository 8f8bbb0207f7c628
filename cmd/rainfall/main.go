package main

import (
	"fmt"
	"os"
	"strings"

	"rainfall-predictor/internal/cfg"
	"rainfall-predictor/internal/common"
	"rainfall-predictor/internal/rainfall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	artifactsDir string
	logLevel     string
	threshold    float64
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rainfall",
	Short: "Rainfall prediction from daily weather observations",
	Long: `Predicts whether it will rain from eight weather measurements.

Observations are validated, engineered into the fifteen model columns,
scaled with the fitted scaler and scored by the trained classifier.

Configuration is read from CONFIG_FILE (YAML) or the environment, and a
.env file in the working directory is loaded first when present.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (or set CONFIG_FILE env)")
	rootCmd.PersistentFlags().StringVarP(&artifactsDir, "artifacts", "a", "", "Artifacts directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", -1, "Decision threshold (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(evaluateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSettings reads configuration, applies flag overrides and sets up logging.
func loadSettings(cmd *cobra.Command) (cfg.Settings, error) {
	if configFile != "" {
		if err := os.Setenv(common.EnvConfigFile, configFile); err != nil {
			return cfg.Settings{}, err
		}
	}

	settings, err := cfg.Load()
	if err != nil {
		return cfg.Settings{}, fmt.Errorf("config load failed: %w", err)
	}

	if artifactsDir != "" {
		settings.ArtifactsDir = artifactsDir
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	if cmd.Flags().Changed("threshold") {
		settings.ProbThreshold = threshold
	}

	setupLogging(settings)
	return settings, nil
}

func setupLogging(settings cfg.Settings) {
	level, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if settings.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// loadService builds a service without metrics or a prediction log, for the
// one-shot commands.
func loadService(cmd *cobra.Command) (*rainfall.Service, cfg.Settings, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, settings, err
	}
	rt, err := rainfall.Load(settings, nil)
	if err != nil {
		return nil, settings, err
	}
	return rainfall.NewService(rt, nil), settings, nil
}
