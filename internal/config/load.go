package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; environment variables alone are enough.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/lyricwatch")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with the LYRICWATCH_ prefix override file
	// values, e.g. LYRICWATCH_DATABASE_URL, LYRICWATCH_SERVER_PORT.
	v.SetEnvPrefix("LYRICWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every tunable so a minimal
// deployment only has to provide the database URL and JWT secret.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.idle_poll_interval", "1s")
	v.SetDefault("worker.heartbeat_interval", "5s")
	v.SetDefault("worker.job_timeout", "30m")
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.failure_ratio", 0.1)
	v.SetDefault("worker.eta_window", 20)
	v.SetDefault("worker.snapshot_grace", "10m")
	v.SetDefault("worker.recovery_interval", "30s")

	v.SetDefault("poller.fast_interval", "1s")
	v.SetDefault("poller.medium_interval", "3s")
	v.SetDefault("poller.slow_interval", "10s")
	v.SetDefault("poller.warmup_window", "10s")
	v.SetDefault("poller.backoff_factor", 2.0)
	v.SetDefault("poller.max_interval", "60s")
	v.SetDefault("poller.max_consecutive_errors", 5)

	v.SetDefault("scoring.model_name", "gemini-2.0-flash")
	v.SetDefault("scoring.max_retries", 3)
	v.SetDefault("scoring.retry_delay_seconds", 2)
}
