// Package config provides configuration management for bwsctl.
// Configuration is loaded from environment variables with the BWS_ prefix.
//
// The access token is deliberately absent: it is read from BWS_ACCESS_TOKEN
// by the secrets package alone, so it never travels through a Config value.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration settings for bwsctl.
type Config struct {
	BWS           BWSConfig
	Log           LogConfig
	Metrics       MetricsConfig
	Observability ObservabilityConfig
}

// BWSConfig holds settings for talking to the bws executable.
type BWSConfig struct {
	// Project is the default project name (optional, --project overrides)
	Project string
	// Path is the bws executable, resolved through PATH if not absolute
	// (optional, the config file value or "bws" applies when empty)
	Path string
	// Timeout bounds a whole bwsctl command; zero means no limit (default: 0)
	Timeout time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error) (default: info)
	Level string
	// Format is the log format (json, console) (default: console)
	Format string
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// TextfilePath receives the Prometheus text exposition on exit (optional)
	TextfilePath string
}

// ObservabilityConfig holds tracing settings.
type ObservabilityConfig struct {
	// TracingEnabled enables OpenTelemetry tracing (default: false)
	TracingEnabled bool
	// TracingEndpoint is the OTLP HTTP collector endpoint (e.g., "localhost:4318")
	TracingEndpoint string
	// TracingInsecure disables TLS for the tracing connection (default: true)
	TracingInsecure bool
	// TracingSampleRate is the sampling rate (0.0 to 1.0) (default: 1.0)
	TracingSampleRate float64
}

// Load reads configuration from environment variables.
// Environment variables use the BWS_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		BWS: BWSConfig{
			Project: getEnv("BWS_PROJECT", ""),
			Path:    getEnv("BWS_PATH", ""),
			Timeout: getEnvDuration("BWS_TIMEOUT", 0),
		},
		Log: LogConfig{
			Level:  getEnv("BWS_LOG_LEVEL", "info"),
			Format: getEnv("BWS_LOG_FORMAT", "console"),
		},
		Metrics: MetricsConfig{
			TextfilePath: getEnv("BWS_METRICS_TEXTFILE", ""),
		},
		Observability: ObservabilityConfig{
			TracingEnabled:    getEnvBool("BWS_TRACING_ENABLED", false),
			TracingEndpoint:   getEnv("BWS_TRACING_ENDPOINT", ""),
			TracingInsecure:   getEnvBool("BWS_TRACING_INSECURE", true),
			TracingSampleRate: getEnvFloat("BWS_TRACING_SAMPLE_RATE", 1.0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error

	if c.BWS.Path != "" && strings.TrimSpace(c.BWS.Path) == "" {
		errs = append(errs, errors.New("BWS_PATH cannot be blank"))
	}
	if c.BWS.Timeout < 0 {
		errs = append(errs, errors.New("BWS_TIMEOUT cannot be negative"))
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, errors.New("BWS_LOG_LEVEL must be one of: debug, info, warn, error"))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, errors.New("BWS_LOG_FORMAT must be one of: json, console"))
	}

	// Tracing validation (conditional)
	if c.Observability.TracingEnabled && c.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("BWS_TRACING_ENDPOINT is required when tracing is enabled"))
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		errs = append(errs, errors.New("BWS_TRACING_SAMPLE_RATE must be between 0.0 and 1.0"))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// ValidationError contains multiple validation errors.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Unwrap returns the underlying errors for errors.Is/As compatibility.
func (e *ValidationError) Unwrap() []error {
	return e.Errors
}

// MetricsEnabled returns true if a textfile destination is configured.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.TextfilePath != ""
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
