package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/solatis/smsfilter/internal/types"
)

// flagKeys maps command-line flag names to configuration keys. Flags the
// command does not define are skipped.
var flagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"metrics":    "server.metrics_addr",
	"data-dir":   "storage.data_dir",
	"db-url":     "storage.database_url",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// LoadConfig resolves configuration with the precedence
// flags > SMSF_* environment > config file > defaults.
// configPath and flags may both be empty or nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultServiceConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &ServiceConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		MetricsAddr:    v.GetString("server.metrics_addr"),
		MaxConnections: v.GetInt("server.max_connections"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		DataDir:        v.GetString("storage.data_dir"),
		DatabaseURL:    v.GetString("storage.database_url"),
		MaxImportSize:  v.GetInt64("filter.max_import_size"),
		ArchiveBlocked: v.GetBool("filter.archive_blocked"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *ServiceConfig) {
	v.SetDefault("server.host", d.Host)
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.metrics_addr", d.MetricsAddr)
	v.SetDefault("server.max_connections", d.MaxConnections)
	v.SetDefault("server.request_timeout", d.RequestTimeout.String())
	v.SetDefault("storage.data_dir", d.DataDir)
	v.SetDefault("storage.database_url", d.DatabaseURL)
	v.SetDefault("filter.max_import_size", d.MaxImportSize)
	v.SetDefault("filter.archive_blocked", d.ArchiveBlocked)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)
}

func validateConfig(cfg *ServiceConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxImportSize <= 0 || cfg.MaxImportSize > types.MaxDocumentSize {
		return fmt.Errorf("max_import_size must be between 1 and %d, got %d", types.MaxDocumentSize, cfg.MaxImportSize)
	}
	if cfg.DataDir == "" && cfg.DatabaseURL == "" {
		return fmt.Errorf("one of data_dir or database_url is required")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error, got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}

// validateNoSecretsInConfig rejects HMAC secrets in config files; they are
// read from the environment only.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range []string{"hmac_secret", "server.hmac_secret", "auth.hmac_secret"} {
		if v.InConfig(key) {
			return fmt.Errorf("HMAC secrets not allowed in config files (use %s_HMAC_SECRET environment variable)", EnvPrefix)
		}
	}
	return nil
}
