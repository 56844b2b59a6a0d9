package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "HPN_CO2"

	// EnvAPIKeys is the primary environment variable for server-side Gemini keys (comma-separated).
	// It takes priority over keys in the config file.
	EnvAPIKeys = "GEMINI_API_KEYS"

	// envNamedKeyPrefix marks single named keys, e.g. HPN_CO2_GEMINI_KEY_TEAM=AIza...
	envNamedKeyPrefix = envPrefix + "_GEMINI_KEY_"
)

// DotEnvFile is loaded before anything else. Variables already set in the
// environment win over the file.
var DotEnvFile = ".env"

// loadConfig loads the configuration.
// Priority order (highest to lowest):
// 1. GEMINI_API_KEYS env var for keys
// 2. Environment variables (prefixed with HPN_CO2_), including those from .env
// 3. config.yaml
// 4. Default values
func loadConfig(configPath string) (*Configuration, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{
			Op:     "dotenv",
			Source: DotEnvFile,
			Err:    err,
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hpn-co2-enricher")
		v.AddConfigPath("$HOME/.hpn-co2-enricher")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &ConfigError{
				Op:     "read",
				Source: configPath,
				Err:    err,
			}
		}
	} else if len(v.GetStringSlice("gemini.api_keys")) > 0 && os.Getenv(EnvAPIKeys) == "" {
		fmt.Fprintf(os.Stderr, "[SECURITY] Warning: Gemini keys read from %s - prefer %s in production\n",
			v.ConfigFileUsed(), EnvAPIKeys)
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{
			Op:     "unmarshal",
			Source: v.ConfigFileUsed(),
			Err:    err,
		}
	}

	if keys := splitKeys(os.Getenv(EnvAPIKeys)); len(keys) > 0 {
		cfg.Gemini.APIKeys = keys
	} else {
		cfg.Gemini.APIKeys = appendNamedEnvKeys(splitKeys(strings.Join(cfg.Gemini.APIKeys, ",")))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key needs a default so
// AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.timeout", "60s")
	v.SetDefault("gemini.models", domain.DefaultModelCandidates())
	v.SetDefault("gemini.api_keys", []string{})
	v.SetDefault("gemini.cooldown", "60s")

	v.SetDefault("enrichment.cache_max_entries", 100)
	v.SetDefault("enrichment.cache_ttl", "24h")
	v.SetDefault("enrichment.max_retries", 3)
	v.SetDefault("enrichment.initial_retry_delay", "1s")
	v.SetDefault("enrichment.max_retry_delay", "5s")
	v.SetDefault("enrichment.min_request_interval", "1s")
	v.SetDefault("enrichment.max_enrichers", 256)

	v.SetDefault("store.path", "co2-enricher.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
}

// splitKeys parses a comma-separated key list, dropping blanks and duplicates.
func splitKeys(raw string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// appendNamedEnvKeys adds keys from HPN_CO2_GEMINI_KEY_* variables that are not already present.
func appendNamedEnvKeys(keys []string) []string {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, envNamedKeyPrefix) {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		exists := false
		for _, k := range keys {
			if k == value {
				exists = true
				break
			}
		}
		if !exists {
			keys = append(keys, value)
		}
	}
	return keys
}
