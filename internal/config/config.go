// Package config provides configuration management using the Singleton pattern.
// It loads configuration from .env, environment variables and config.yaml using Viper.
package config

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hpn/hpn-co2-enricher/internal/security"
)

// Configuration holds all application configuration values.
type Configuration struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`

	// Gemini provider configuration
	Gemini GeminiConfig `json:"gemini" yaml:"gemini" mapstructure:"gemini"`

	// Enrichment pipeline tuning
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment" mapstructure:"enrichment"`

	// Store configuration
	Store StoreConfig `json:"store" yaml:"store" mapstructure:"store"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `json:"host" yaml:"host" mapstructure:"host"`

	// Port is the server port number.
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// ReadTimeoutSeconds is the maximum duration for reading the entire request.
	ReadTimeoutSeconds int `json:"read_timeout_seconds" yaml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`

	// WriteTimeoutSeconds covers the whole model chain, so it is generous.
	WriteTimeoutSeconds int `json:"write_timeout_seconds" yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// ShutdownTimeoutSeconds is the maximum duration to wait for active connections to finish.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" mapstructure:"cors_origins"`
}

// GeminiConfig holds the provider endpoint, the candidate models and server-side keys.
type GeminiConfig struct {
	// BaseURL is the generativelanguage API root.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds a single generateContent call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// Models is the ordered fallback chain.
	Models []string `json:"models" yaml:"models" mapstructure:"models"`

	// APIKeys are server-side keys used when a request brings none.
	APIKeys []string `json:"api_keys" yaml:"api_keys" mapstructure:"api_keys"`

	// Cooldown is how long a rate-limited server key is skipped.
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown" mapstructure:"cooldown"`
}

// EnrichmentConfig tunes the cache, retry and rate limiting.
type EnrichmentConfig struct {
	CacheMaxEntries    int           `json:"cache_max_entries" yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
	CacheTTL           time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`
	MaxRetries         int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	InitialRetryDelay  time.Duration `json:"initial_retry_delay" yaml:"initial_retry_delay" mapstructure:"initial_retry_delay"`
	MaxRetryDelay      time.Duration `json:"max_retry_delay" yaml:"max_retry_delay" mapstructure:"max_retry_delay"`
	MinRequestInterval time.Duration `json:"min_request_interval" yaml:"min_request_interval" mapstructure:"min_request_interval"`

	// MaxEnrichers caps the per-key enrichers kept in memory; the least recently used is dropped.
	MaxEnrichers int `json:"max_enrichers" yaml:"max_enrichers" mapstructure:"max_enrichers"`
}

// StoreConfig holds the SQLite location.
type StoreConfig struct {
	// Path is the database file. ":memory:" keeps everything in memory.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is the log format (json, text, auto). auto picks text on a terminal.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// configInstance holds the singleton configuration instance.
var (
	configInstance *Configuration
	configOnce     sync.Once
	configErr      error
)

// GetConfig returns the singleton Configuration instance.
// It initializes the configuration on first call using the default config path.
func GetConfig() (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig("")
	})
	return configInstance, configErr
}

// GetConfigWithPath returns the singleton Configuration instance with a custom config path.
// The path only matters on the first call.
func GetConfigWithPath(configPath string) (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig(configPath)
	})
	return configInstance, configErr
}

// ResetConfig resets the singleton instance.
// This is primarily used for testing purposes.
func ResetConfig() {
	configOnce = sync.Once{}
	configInstance = nil
	configErr = nil
}

// Addr returns host:port for the HTTP server.
func (c *Configuration) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Redacted returns a copy safe to print, with every API key masked.
func (c *Configuration) Redacted() Configuration {
	out := *c
	out.Gemini.Models = append([]string(nil), c.Gemini.Models...)
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	out.Gemini.APIKeys = make([]string, len(c.Gemini.APIKeys))
	for i, k := range c.Gemini.APIKeys {
		out.Gemini.APIKeys[i] = security.MaskKey(k)
	}
	return out
}

// Validate checks every section and reports all problems at once.
func (c *Configuration) Validate() error {
	ve := &ValidationError{}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		ve.add("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Gemini.BaseURL == "" {
		ve.add("gemini.base_url", "is required")
	}
	if c.Gemini.Timeout <= 0 {
		ve.add("gemini.timeout", "must be positive")
	}
	if len(c.Gemini.Models) == 0 {
		ve.add("gemini.models", "cannot be empty, at least one candidate model is required")
	}
	for i, m := range c.Gemini.Models {
		if m == "" {
			ve.add(fmt.Sprintf("gemini.models[%d]", i), "is empty")
		}
	}
	if c.Gemini.Cooldown < 0 {
		ve.add("gemini.cooldown", "cannot be negative")
	}

	e := c.Enrichment
	if e.CacheMaxEntries <= 0 {
		ve.add("enrichment.cache_max_entries", "must be positive")
	}
	if e.CacheTTL <= 0 {
		ve.add("enrichment.cache_ttl", "must be positive")
	}
	if e.MaxRetries < 0 {
		ve.add("enrichment.max_retries", "cannot be negative")
	}
	if e.InitialRetryDelay <= 0 {
		ve.add("enrichment.initial_retry_delay", "must be positive")
	}
	if e.MaxRetryDelay < e.InitialRetryDelay {
		ve.add("enrichment.max_retry_delay", "must not be below initial_retry_delay (%s)", e.InitialRetryDelay)
	}
	if e.MinRequestInterval < 0 {
		ve.add("enrichment.min_request_interval", "cannot be negative")
	}
	if e.MaxEnrichers <= 0 {
		ve.add("enrichment.max_enrichers", "must be positive")
	}

	if c.Store.Path == "" {
		ve.add("store.path", "is required")
	}

	if c.Logging.Level != "" && !isValidLogLevel(c.Logging.Level) {
		ve.add("logging.level", "'%s' is invalid, must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "" && !isValidLogFormat(c.Logging.Format) {
		ve.add("logging.format", "'%s' is invalid, must be one of: json, text, auto", c.Logging.Format)
	}

	if len(ve.Problems) > 0 {
		return ve
	}
	return nil
}

// isValidLogLevel checks if the log level is valid.
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "json", "text", "auto":
		return true
	default:
		return false
	}
}
