// Package config defines the global configuration structure for the payhook
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration: every value is environment-sourced,
// optionally seeded from a .env file during local development.
package config

import (
	"time"

	"payhook/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the payhook service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"payhook"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Webhook       WebhookConfig
	Relay         RelayConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WebhookConfig holds the inbound webhook authentication settings.
//
// SignatureHeader is the provider's signature header name. The signing
// algorithm itself is fixed (HMAC-SHA256, hex-encoded over the raw body);
// only the header carrying it is provider-specific.
type WebhookConfig struct {
	Secret          SecretString `envconfig:"WEBHOOK_SECRET" validate:"required"`
	SignatureHeader string       `envconfig:"WEBHOOK_SIGNATURE_HEADER" default:"X-Razorpay-Signature"`
	MaxBodyBytes    int64        `envconfig:"WEBHOOK_MAX_BODY_BYTES" default:"65536"`
}

// RelayConfig holds settings for the accepted-event relay queue.
// The relay is disabled when QueueURL is empty.
type RelayConfig struct {
	QueueURL string `envconfig:"RELAY_QUEUE_URL" validate:"omitempty,url"`
}

// AWSConfig holds regional configuration for the SQS relay and CloudWatch
// metrics clients. EndpointURL supports LocalStack in development and is
// empty in production.
type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Payhook"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// RelayEnabled reports whether the accepted-event relay should be wired.
func (c *Config) RelayEnabled() bool {
	return c.Relay.QueueURL != ""
}
