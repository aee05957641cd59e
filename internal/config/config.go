package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1,lte=300"`
}

// ShutdownTimeout returns the configured graceful shutdown window.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0,ltefield=MaxOpenConns"`
}

// TaskConfig controls the lifecycle engine and the background runner.
type TaskConfig struct {
	// ProcessingDelayMS is how long a background run stays in_progress.
	ProcessingDelayMS int    `mapstructure:"processing_delay_ms" validate:"gte=0"`
	TransitionPolicy  string `mapstructure:"transition_policy" validate:"omitempty,oneof=permissive strict"`
	DedupeRuns        bool   `mapstructure:"dedupe_runs"`
}

// ProcessingDelay returns ProcessingDelayMS as a duration.
func (c TaskConfig) ProcessingDelay() time.Duration {
	return time.Duration(c.ProcessingDelayMS) * time.Millisecond
}

// NotifyConfig selects the optional notification sinks. The log sink is
// always active; the webhook and NATS sinks are enabled by setting their URL.
type NotifyConfig struct {
	WebhookURL       string `mapstructure:"webhook_url" validate:"omitempty,url"`
	WebhookTimeoutMS int    `mapstructure:"webhook_timeout_ms" validate:"gte=0"`
	NATSURL          string `mapstructure:"nats_url" validate:"omitempty,url"`
	NATSSubject      string `mapstructure:"nats_subject" validate:"required_with=NATSURL"`
}

// WebhookTimeout returns WebhookTimeoutMS as a duration.
func (c NotifyConfig) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutMS) * time.Millisecond
}
