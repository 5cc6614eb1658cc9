package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultEmailPattern is the RFC 5322 subset used to accept botanist emails.
const DefaultEmailPattern = `(?i)^(?:[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*|"(?:[\x01-\x08\x0b\x0c\x0e-\x1f\x21\x23-\x5b\x5d-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])*")@(?:(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?|\[(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?|[a-z0-9-]*[a-z0-9]:(?:[\x01-\x08\x0b\x0c\x0e-\x1f\x21-\x5a\x53-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])+)\])$`

// Trigger modes for the pipeline process.
const (
	TriggerOnce     = "once"
	TriggerInterval = "interval"
	TriggerQueue    = "queue"
)

// Unresolved botanist policies for the loader.
const (
	UnresolvedBotanistNull   = "null"
	UnresolvedBotanistReject = "reject"
)

// Export drivers.
const (
	ExportNone = "none"
	ExportFile = "file"
	ExportS3   = "s3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds all application configuration
type Config struct {
	ServiceName string `validate:"required"`
	Database    DatabaseConfig
	API         APIConfig
	Transform   TransformConfig
	Loader      LoaderConfig
	Anomaly     AnomalyConfig
	Pipeline    PipelineConfig
	RabbitMQ    RabbitMQConfig
	Metrics     MetricsConfig
	Export      ExportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string `validate:"required"`
	Schema   string `validate:"required"`
	MaxConns int    `validate:"gte=0"`
}

// APIConfig holds the upstream plant API settings
type APIConfig struct {
	BaseURL        string        `validate:"required,url"`
	FirstID        int           `validate:"gte=0"`
	LastID         int           `validate:"gtefield=FirstID"`
	RequestTimeout time.Duration `validate:"gt=0"`
	MaxConcurrency int           `validate:"gte=1"`
}

// TransformConfig holds cleaning settings
type TransformConfig struct {
	DecimalPlaces int    `validate:"gte=0,lte=10"`
	EmailPattern  string `validate:"required"`
}

// LoaderConfig holds load settings
type LoaderConfig struct {
	UnresolvedBotanist string `validate:"oneof=null reject"`
}

// AnomalyConfig holds anomaly detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64 `validate:"gt=1"`
	MinDataPointsForDetection int     `validate:"gte=1"`
	HistorySize               int     `validate:"gte=1"`
}

// PipelineConfig holds trigger settings
type PipelineConfig struct {
	Trigger  string        `validate:"oneof=once interval queue"`
	Interval time.Duration `validate:"gt=0"`
}

// RabbitMQConfig holds RabbitMQ connection, event and trigger queue settings
type RabbitMQConfig struct {
	URL               string
	EventsExchange    string
	RunRoutingKey     string
	ArchiveRoutingKey string
	TriggerExchange   string
	TriggerQueue      string
	TriggerRoutingKey string
	DLQQueue          string
	PrefetchCount     int `validate:"gte=1"`
}

// MetricsConfig holds Prometheus push settings
type MetricsConfig struct {
	PushgatewayURL string `validate:"omitempty,url"`
}

// ExportConfig holds CSV export sink settings
type ExportConfig struct {
	Driver      string `validate:"oneof=none file s3"`
	Dir         string `validate:"required_if=Driver file"`
	Prefix      string
	S3Bucket    string `validate:"required_if=Driver s3"`
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	env := &envReader{}
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "plant-metrics-pipeline"),
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Schema:   getEnv("DB_SCHEMA", "public"),
			MaxConns: env.Int("DB_MAX_CONNS", 4),
		},
		API: APIConfig{
			BaseURL:        strings.TrimRight(getEnv("API_BASE_URL", "https://data-eng-plants-api.herokuapp.com"), "/"),
			FirstID:        env.Int("API_FIRST_ID", 0),
			LastID:         env.Int("API_LAST_ID", 50),
			MaxConcurrency: env.Int("API_MAX_CONCURRENCY", 10),
		},
		Transform: TransformConfig{
			DecimalPlaces: env.Int("TRANSFORM_DECIMAL_PLACES", 2),
			EmailPattern:  getEnv("TRANSFORM_EMAIL_PATTERN", DefaultEmailPattern),
		},
		Loader: LoaderConfig{
			UnresolvedBotanist: strings.ToLower(getEnv("LOADER_UNRESOLVED_BOTANIST", UnresolvedBotanistNull)),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            env.Float("ANOMALY_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: env.Int("ANOMALY_MIN_DATA_POINTS", 3),
			HistorySize:               env.Int("ANOMALY_HISTORY_SIZE", 10),
		},
		Pipeline: PipelineConfig{
			Trigger: strings.ToLower(getEnv("PIPELINE_TRIGGER", TriggerOnce)),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               getEnv("RABBITMQ_URL", ""),
			EventsExchange:    getEnv("RABBITMQ_EVENTS_EXCHANGE", "plant-metrics.events.exchange"),
			RunRoutingKey:     getEnv("RABBITMQ_RUN_ROUTING_KEY", "pipeline.run.completed"),
			ArchiveRoutingKey: getEnv("RABBITMQ_ARCHIVE_ROUTING_KEY", "archive.run.completed"),
			TriggerExchange:   getEnv("RABBITMQ_TRIGGER_EXCHANGE", "plant-metrics.trigger.exchange"),
			TriggerQueue:      getEnv("RABBITMQ_TRIGGER_QUEUE", "plant-metrics.trigger.queue"),
			TriggerRoutingKey: getEnv("RABBITMQ_TRIGGER_ROUTING_KEY", "pipeline.run.requested"),
			DLQQueue:          getEnv("RABBITMQ_DLQ_QUEUE", "plant-metrics.trigger.dlq"),
			PrefetchCount:     env.Int("RABBITMQ_PREFETCH", 1),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: getEnv("METRICS_PUSHGATEWAY_URL", ""),
		},
		Export: ExportConfig{
			Driver:      strings.ToLower(getEnv("EXPORT_DRIVER", ExportNone)),
			Dir:         getEnv("EXPORT_DIR", ""),
			Prefix:      getEnv("EXPORT_PREFIX", "plant-metrics"),
			S3Bucket:    getEnv("EXPORT_S3_BUCKET", ""),
			S3Region:    getEnv("EXPORT_S3_REGION", "us-east-1"),
			S3Endpoint:  getEnv("EXPORT_S3_ENDPOINT", ""),
			S3PathStyle: getEnvAsBool("EXPORT_S3_PATH_STYLE", false),
		},
	}

	cfg.API.RequestTimeout = env.Duration("API_REQUEST_TIMEOUT", 30*time.Second)
	cfg.Pipeline.Interval = env.Duration("PIPELINE_INTERVAL", time.Minute)
	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.Pipeline.Trigger == TriggerQueue && cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required when PIPELINE_TRIGGER=%s", TriggerQueue)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural rules on an already populated configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: rule '%s' failed for value '%v'", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "1" || strings.EqualFold(valueStr, "true")
}

// envReader parses typed variables and keeps every malformed value it sees so
// Load can report them together.
type envReader struct {
	errs []error
}

func (e *envReader) Int(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (e *envReader) Float(key string, defaultValue float64) float64 {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (e *envReader) Duration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}
