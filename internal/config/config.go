package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Global singleton for backwards compatibility with init-order callers
var globalConfig *Config

// Config holds all environment backed configuration for dispatch-api.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Invocation layer
	EndpointConfigFile string        `env:"ENDPOINT_CONFIGS_FILE" envDefault:"config/endpoints.yml"`
	FailureThreshold   int           `env:"INVOKER_FAILURE_THRESHOLD" envDefault:"3"`
	RecoveryInterval   time.Duration `env:"INVOKER_RECOVERY_INTERVAL" envDefault:"30s"`
	MaxConcurrency     int           `env:"INVOKER_MAX_CONCURRENCY" envDefault:"8"`
	RequestTimeout     time.Duration `env:"INVOKER_REQUEST_TIMEOUT" envDefault:"30s"`
	// OverallTimeout bounds one logical call across all failover attempts.
	// Zero disables the aggregate deadline.
	OverallTimeout time.Duration `env:"INVOKER_OVERALL_TIMEOUT" envDefault:"0"`

	// Dispatch scopes
	InferenceScope string `env:"INFERENCE_SCOPE" envDefault:"inference"`
	GeocodingScope string `env:"GEOCODING_SCOPE" envDefault:"geocoding"`
	IntentModel    string `env:"INTENT_MODEL" envDefault:"qwen3-4b-instruct"`

	// Device names surfaced to the intent model so it can ground
	// device-control commands against the installed fleet.
	KnownDevices []string `env:"KNOWN_DEVICES" envSeparator:","`

	// Device control (MQTT)
	MQTTBrokerURL    string        `env:"MQTT_BROKER_URL" envDefault:"tcp://localhost:1883"`
	MQTTClientID     string        `env:"MQTT_CLIENT_ID" envDefault:"dispatch-api"`
	MQTTUsername     string        `env:"MQTT_USERNAME"`
	MQTTPassword     string        `env:"MQTT_PASSWORD"`
	MQTTCommandTopic string        `env:"MQTT_COMMAND_TOPIC" envDefault:"devices/commands"`
	MQTTTimeout      time.Duration `env:"MQTT_TIMEOUT" envDefault:"5s"`

	// Cron
	HealthExportIntervalMinutes int  `env:"HEALTH_EXPORT_INTERVAL_MINUTES" envDefault:"1"`
	HealthExportEnabled         bool `env:"HEALTH_EXPORT_ENABLED" envDefault:"true"`

	// Observability / Logging
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string        `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"dispatch-api"`
	ServiceNamespace string        `env:"SERVICE_NAMESPACE" envDefault:"dispatch"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Internal
	EndpointGroups *EndpointGroupsConfig `env:"-"`
	EnvReloadedAt  time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	groups, err := LoadEndpointGroupsConfig(cfg.EndpointConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load endpoint configs: %w", err)
	}
	cfg.EndpointGroups = groups

	if _, err := url.Parse(cfg.MQTTBrokerURL); err != nil {
		return nil, fmt.Errorf("invalid MQTT_BROKER_URL: %w", err)
	}

	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("INVOKER_FAILURE_THRESHOLD must be positive, got %d", cfg.FailureThreshold)
	}
	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("INVOKER_MAX_CONCURRENCY must be positive, got %d", cfg.MaxConcurrency)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.EnvReloadedAt = time.Now()

	globalConfig = cfg

	return cfg, nil
}

// GetGlobal returns the last loaded configuration.
func GetGlobal() *Config {
	return globalConfig
}
