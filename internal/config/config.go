// Package config loads the lawnwatch runtime configuration from the
// environment. Values resolve in priority order:
//
//	OS environment -> .env file -> AWS SSM Parameter Store (via *_SSM_PARAM)
//
// The Config is built once at startup and never mutated.
package config

import (
	"time"

	"lawnwatch/internal/types"
)

type SecretString = types.SecretString

type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"lawnwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Weather       WeatherConfig
	Monitoring    MonitoringConfig
	Alerts        AlertsConfig
	Reschedule    RescheduleConfig
	Prediction    PredictionConfig
	Observability ObservabilityConfig

	// Build is injected via ldflags, not the environment.
	Build BuildInfo `ignored:"true"`
}

type ServerConfig struct {
	Addr            string        `envconfig:"OPS_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"20s" validate:"gt=0"`
}

// DatabaseConfig points at the schedule and training-sample database.
// URL is only required by the serve command.
type DatabaseConfig struct {
	URL               SecretString  `envconfig:"DATABASE_URL"`
	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

type AWSConfig struct {
	Region        string `envconfig:"AWS_REGION" default:"us-east-1"`
	AlertQueueURL string `envconfig:"SQS_ALERTS" validate:"omitempty,url"`
	// EndpointURL targets LocalStack when set.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

type WeatherConfig struct {
	BaseURL          string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com" validate:"url"`
	UserAgent        string        `envconfig:"WEATHER_USER_AGENT" default:"LawnWatch/1.0"`
	Timeout          time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRetries       int           `envconfig:"WEATHER_MAX_RETRIES" default:"2" validate:"min=0,max=5"`
	BreakerThreshold uint32        `envconfig:"WEATHER_BREAKER_THRESHOLD" default:"5" validate:"min=1"`
	BreakerTimeout   time.Duration `envconfig:"WEATHER_BREAKER_TIMEOUT" default:"30s"`
	CacheTTL         time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`
}

type MonitoringConfig struct {
	CheckIntervalMinutes int           `envconfig:"MONITOR_CHECK_INTERVAL_MINUTES" default:"60" validate:"min=15,max=360"`
	ForecastHours        int           `envconfig:"MONITOR_FORECAST_HOURS" default:"72" validate:"min=24,max=168"`
	CheckTimeout         time.Duration `envconfig:"MONITOR_CHECK_TIMEOUT" default:"30s" validate:"gt=0"`
	SyncHorizon          time.Duration `envconfig:"MONITOR_SYNC_HORIZON" default:"168h" validate:"gt=0"`
	SyncSchedule         string        `envconfig:"MONITOR_SYNC_SCHEDULE" default:"0 */15 * * * *" validate:"required"`
	SyncConcurrency      int           `envconfig:"MONITOR_SYNC_CONCURRENCY" default:"4" validate:"min=1,max=64"`
}

type AlertsConfig struct {
	BatchWindow       time.Duration `envconfig:"ALERT_BATCH_WINDOW" default:"15m" validate:"gt=0"`
	MaxPerBatch       int           `envconfig:"ALERT_MAX_PER_BATCH" default:"10" validate:"min=1"`
	MinPriority       int           `envconfig:"ALERT_MIN_PRIORITY" default:"1" validate:"min=1,max=5"`
	DispatchTimeout   time.Duration `envconfig:"ALERT_DISPATCH_TIMEOUT" default:"30s" validate:"gt=0"`
	CompressThreshold int           `envconfig:"ALERT_COMPRESS_THRESHOLD" default:"65536" validate:"min=0"`
}

type RescheduleConfig struct {
	AlertThreshold float64 `envconfig:"RESCHEDULE_ALERT_THRESHOLD" default:"3" validate:"gte=1,lte=5"`
	DaysToCheck    int     `envconfig:"RESCHEDULE_DAYS_TO_CHECK" default:"7" validate:"min=1,max=16"`
}

type PredictionConfig struct {
	ConfidenceThreshold float64       `envconfig:"PREDICTION_CONFIDENCE_THRESHOLD" default:"0.3" validate:"gte=0,lte=1"`
	MinDataPoints       int           `envconfig:"PREDICTION_MIN_DATA_POINTS" default:"10" validate:"min=1"`
	TrainingInterval    time.Duration `envconfig:"PREDICTION_TRAINING_INTERVAL" default:"24h" validate:"gt=0"`
	MaxSamples          int           `envconfig:"PREDICTION_MAX_SAMPLES" default:"1000" validate:"min=1"`
	RetrainSchedule     string        `envconfig:"PREDICTION_RETRAIN_SCHEDULE" default:"0 0 3 * * *" validate:"required"`
	// FeatureWeights overrides the default weights, e.g.
	// "temperature:0.3,precipitation:0.3". Keys are checked by the engine.
	FeatureWeights map[string]float64 `envconfig:"PREDICTION_FEATURE_WEIGHTS" validate:"dive,gte=0"`
}

type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=cloudwatch prometheus none"`
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// ConfigErrorType categorizes loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)

// RequireServe checks the settings that only the long-running service
// needs: the database and the alert queue.
func (c *Config) RequireServe() error {
	var missing []string
	if c.Database.URL.Unmask() == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.AWS.AlertQueueURL == "" {
		missing = append(missing, "SQS_ALERTS")
	}
	if len(missing) > 0 {
		return &ConfigError{Type: ErrMissingEnv, Message: "serve requires " + joinNames(missing)}
	}
	return nil
}

// MonitoringDefaults returns the per-session defaults.
func (c *Config) MonitoringDefaults() types.MonitoringConfig {
	return types.MonitoringConfig{
		CheckIntervalMinutes: c.Monitoring.CheckIntervalMinutes,
		ForecastHours:        c.Monitoring.ForecastHours,
	}
}
