package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Poller   PollerConfig   `mapstructure:"poller"   validate:"required"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// WorkerConfig tunes the job execution loop. All workers in a process share
// these settings.
type WorkerConfig struct {
	// Count is the number of worker instances competing for the atomic
	// dequeue. Scaling out is just raising this number (or running more
	// processes); no extra coordination is needed.
	Count int `mapstructure:"count" validate:"required,gt=0"`

	// IdlePollInterval is how long a worker sleeps after finding the queue
	// empty.
	IdlePollInterval time.Duration `mapstructure:"idle_poll_interval" validate:"gt=0"`

	// HeartbeatInterval is the cadence at which a worker stamps
	// heartbeat_at on its active job. The recovery monitor treats a
	// heartbeat older than twice this as stale.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"gt=0"`

	// JobTimeout bounds a job's wall-clock runtime across all attempts.
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"gt=0"`

	// MaxAttempts is the retry budget; a job dequeued more times than this
	// fails instead of running again.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// FailureRatio is the tolerated fraction of failed units before the
	// whole job fails.
	FailureRatio float64 `mapstructure:"failure_ratio" validate:"gt=0,lte=1"`

	// ETAWindow is the number of recent unit durations the rolling-average
	// ETA uses.
	ETAWindow int `mapstructure:"eta_window" validate:"required,gt=0"`

	// SnapshotGrace is how long a progress snapshot outlives its job's
	// terminal transition before the reaper may delete it.
	SnapshotGrace time.Duration `mapstructure:"snapshot_grace" validate:"gt=0"`

	// RecoveryInterval is how often the orphan recovery monitor and the
	// snapshot reaper run.
	RecoveryInterval time.Duration `mapstructure:"recovery_interval" validate:"gt=0"`
}

// PollerConfig tunes the adaptive client poller defaults.
type PollerConfig struct {
	FastInterval   time.Duration `mapstructure:"fast_interval"   validate:"gt=0"`
	MediumInterval time.Duration `mapstructure:"medium_interval" validate:"gt=0"`
	SlowInterval   time.Duration `mapstructure:"slow_interval"   validate:"gt=0"`

	// WarmupWindow keeps polling at the fast interval right after a job
	// starts, regardless of reported percentage.
	WarmupWindow time.Duration `mapstructure:"warmup_window" validate:"gt=0"`

	// BackoffFactor multiplies the current interval after each transport
	// failure, up to MaxInterval.
	BackoffFactor float64       `mapstructure:"backoff_factor" validate:"gt=1"`
	MaxInterval   time.Duration `mapstructure:"max_interval"   validate:"gt=0"`

	// MaxConsecutiveErrors is the number of back-to-back transport failures
	// after which a job is declared untrackable and polling stops.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors" validate:"required,gt=0"`
}

// ScoringConfig contains settings for the Gemini content-scoring collaborator.
// Optional: when the API key is empty the server wires a stub scorer, which
// keeps local development possible without credentials.
type ScoringConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
	LyricsBaseURL     string `mapstructure:"lyrics_base_url"`

	// CatalogBaseURL points at the catalog service used to enumerate
	// background sweeps. Sweeps fail fatally when it is unset.
	CatalogBaseURL string `mapstructure:"catalog_base_url"`
}
