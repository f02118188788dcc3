package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied by DefaultConfig
const (
	DefaultRegion  = "IAD"
	DefaultTimeout = 30 * time.Second

	DefaultServiceName = "blueflood-client"
)

// Config holds all configuration options for the Blueflood client.
// It supports four-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Config file, when one is loaded
//  3. Environment variables
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := core.NewConfig(
//	    core.WithAuthURL("https://identity.api.rackspacecloud.com/v2.0/"),
//	    core.WithCredentials("my-user", "my-api-key"),
//	    core.WithRegion("ORD"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Identity endpoint configuration
	AuthURL  string `json:"auth_url" yaml:"auth_url"`
	Username string `json:"username" yaml:"username"`
	APIKey   string `json:"api_key" yaml:"api_key"`

	// Region used when resolving catalog endpoints
	Region string `json:"region" yaml:"region"`

	// Explicit endpoint overrides. When set, the service catalog is never
	// consulted for that endpoint.
	IngestURL string `json:"ingest_url" yaml:"ingest_url"`
	ReadURL   string `json:"read_url" yaml:"read_url"`

	// Timeout applied to the underlying HTTP client
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// LoggingConfig controls the structured logger created by NewProductionLogger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json or text; auto-detected when empty
}

// TelemetryConfig contains observability configuration for tracing and metrics.
// This is an optional module - telemetry is only initialized when Enabled=true.
// Exporter selects between an OTLP/gRPC receiver ("otlp") and stdout ("stdout").
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Exporter    string `json:"exporter" yaml:"exporter"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Insecure    bool   `json:"insecure" yaml:"insecure"`
}

// Option is a functional option that mutates a Config
type Option func(*Config) error

// DefaultConfig returns a Config populated with defaults only.
// Credentials and the auth URL always come from the environment, a file,
// or options.
func DefaultConfig() *Config {
	return &Config{
		Region:  DefaultRegion,
		Timeout: DefaultTimeout,
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Exporter:    "otlp",
			ServiceName: DefaultServiceName,
			Insecure:    true,
		},
	}
}

// NewConfig builds a Config by layering defaults, environment variables and
// the supplied options, then validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv overlays environment variables onto the configuration.
// Later names in a comma-separated env tag act as fallbacks, mirroring the
// OTEL_* conventions for telemetry settings.
func (c *Config) LoadFromEnv() error {
	setString(&c.AuthURL, "BLUEFLOOD_AUTH_URL")
	setString(&c.Username, "BLUEFLOOD_USERNAME")
	setString(&c.APIKey, "BLUEFLOOD_API_KEY")
	setString(&c.Region, "BLUEFLOOD_REGION")
	setString(&c.IngestURL, "BLUEFLOOD_INGEST_URL")
	setString(&c.ReadURL, "BLUEFLOOD_READ_URL")

	if v := os.Getenv("BLUEFLOOD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ClientError{
				Op:      "Config.LoadFromEnv",
				Kind:    "config",
				Message: fmt.Sprintf("invalid BLUEFLOOD_TIMEOUT %q", v),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Timeout = d
	}

	setString(&c.Logging.Level, "BLUEFLOOD_LOG_LEVEL")
	setString(&c.Logging.Format, "BLUEFLOOD_LOG_FORMAT")

	if v := os.Getenv("BLUEFLOOD_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	setString(&c.Telemetry.Exporter, "BLUEFLOOD_TELEMETRY_EXPORTER")
	setString(&c.Telemetry.Endpoint, "BLUEFLOOD_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Telemetry.ServiceName, "BLUEFLOOD_TELEMETRY_SERVICE_NAME", "OTEL_SERVICE_NAME")
	if v := os.Getenv("BLUEFLOOD_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = parseBool(v)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// File values overlay whatever is already set on the receiver.
func (c *Config) LoadFromFile(path string) error {
	// Clean the path to prevent directory traversal
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Region is required
//   - Identity settings (auth URL, username, API key) are always required:
//     endpoint overrides bypass catalog resolution but every data-plane
//     call still carries a token from the identity exchange
//   - Telemetry endpoint is required for the OTLP exporter when telemetry
//     is enabled
func (c *Config) Validate() error {
	if c.Region == "" {
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "region is required",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.AuthURL == "" {
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "auth URL is required",
			Err:     ErrMissingConfiguration,
		}
	}
	if c.Username == "" || c.APIKey == "" {
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "username and API key are required",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Timeout < 0 {
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid timeout: %s", c.Timeout),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return &ClientError{
					Op:      "Config.Validate",
					Kind:    "config",
					Message: "telemetry endpoint is required for the otlp exporter",
					Err:     ErrMissingConfiguration,
				}
			}
		case "stdout":
		default:
			return &ClientError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: fmt.Sprintf("unknown telemetry exporter %q", c.Telemetry.Exporter),
				Err:     ErrInvalidConfiguration,
			}
		}
	}

	return nil
}

// Functional options

// WithAuthURL sets the identity endpoint base URL
func WithAuthURL(url string) Option {
	return func(c *Config) error {
		c.AuthURL = url
		return nil
	}
}

// WithCredentials sets the username and API key used for the identity exchange
func WithCredentials(username, apiKey string) Option {
	return func(c *Config) error {
		c.Username = username
		c.APIKey = apiKey
		return nil
	}
}

// WithRegion sets the default region used for catalog endpoint resolution
func WithRegion(region string) Option {
	return func(c *Config) error {
		c.Region = region
		return nil
	}
}

// WithIngestURL sets an explicit ingest endpoint, bypassing the catalog
func WithIngestURL(url string) Option {
	return func(c *Config) error {
		c.IngestURL = url
		return nil
	}
}

// WithReadURL sets an explicit read endpoint, bypassing the catalog
func WithReadURL(url string) Option {
	return func(c *Config) error {
		c.ReadURL = url
		return nil
	}
}

// WithTimeout sets the timeout on the underlying HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.Timeout = d
		return nil
	}
}

// WithLogLevel sets the minimum log level (debug, info, warn, error)
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the log output format (json or text)
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithTelemetry enables telemetry with an OTLP endpoint
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		if endpoint != "" {
			c.Telemetry.Endpoint = endpoint
		}
		return nil
	}
}

// WithTelemetryExporter selects the telemetry exporter (otlp or stdout)
func WithTelemetryExporter(exporter string) Option {
	return func(c *Config) error {
		c.Telemetry.Exporter = exporter
		return nil
	}
}

// WithConfigFile loads a JSON or YAML config file when the option is applied.
// Values from the file overlay defaults and environment variables; options
// applied after this one overlay the file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// Helper functions

// setString assigns the first non-empty environment variable to dst
func setString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
			return
		}
	}
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// Everything else is false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
