package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvArtifactsDir   = "ARTIFACTS_DIR"
	EnvProbThreshold  = "PROB_THRESHOLD"
	EnvScorerURL      = "SCORER_URL"
	EnvScorerTimeout  = "SCORER_TIMEOUT"
	EnvPort           = "PORT"
	EnvDataPath       = "DATA_PATH"
	EnvDriftWindow    = "DRIFT_WINDOW"
	EnvDriftThreshold = "DRIFT_THRESHOLD"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
)

// Configuration defaults
const (
	DefaultArtifactsDir   = "artifacts"
	DefaultProbThreshold  = 0.6
	DefaultPort           = 8080
	DefaultDriftWindow    = 500
	DefaultDriftThreshold = 3.0
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"

	MaintenanceSchedule = "@every 1m"
)

// Artifact file names inside the artifacts directory
const (
	ManifestFile       = "manifest.yaml"
	DefaultModelFile   = "model.json"
	DefaultPolyFile    = "poly_features.json"
	DefaultScalerFile  = "scaler.json"
	DefaultPowerFile   = "power_transform.json"
	DefaultStationName = "default"
)

// Validation constants
const (
	MinProbThreshold = 0.0
	MaxProbThreshold = 1.0
	MinPort          = 1024
	MaxPort          = 65535
	MinDriftWindow   = 10
	MaxDriftWindow   = 100000
)
