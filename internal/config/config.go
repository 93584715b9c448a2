package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Calendar CalendarConfig `mapstructure:"calendar" validate:"required"`
	Settings SettingsConfig `mapstructure:"settings" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Host                   string `mapstructure:"host"                     validate:"required"`
	Port                   int    `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// QueueConfig controls the durable task queue and its consumer.
type QueueConfig struct {
	// Driver selects the task store backend.
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`

	// Path is the on-disk queue file used by the sqlite driver.
	Path string `mapstructure:"path" validate:"required_if=Driver sqlite"`

	// DatabaseURL is the connection string used by the postgres driver.
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Driver postgres"`

	// PollIntervalMS bounds how long an idle consumer waits before
	// re-checking the store for work enqueued by another process.
	PollIntervalMS int `mapstructure:"poll_interval_ms" validate:"gte=10"`

	// ShutdownTimeoutSeconds bounds the graceful consumer stop at exit.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`

	// RecoverRunning resets tasks left running by a crashed process back
	// to pending when the consumer first starts.
	RecoverRunning bool `mapstructure:"recover_running"`
}

// PollInterval returns the idle poll interval as a duration.
func (q QueueConfig) PollInterval() time.Duration {
	return time.Duration(q.PollIntervalMS) * time.Millisecond
}

// ShutdownTimeout returns the consumer shutdown bound as a duration.
func (q QueueConfig) ShutdownTimeout() time.Duration {
	return time.Duration(q.ShutdownTimeoutSeconds) * time.Second
}

// CalendarConfig locates the OAuth material for the calendar service.
type CalendarConfig struct {
	CredentialsPath string `mapstructure:"credentials_path" validate:"required"`
	TokenPath       string `mapstructure:"token_path"       validate:"required"`
}

// SettingsConfig locates the user settings file.
type SettingsConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LLMConfig contains natural language parsing settings.
// An empty GeminiAPIKey disables the parser.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"          validate:"required_with=GeminiAPIKey"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// AuthConfig contains optional API authentication settings.
// An empty JWTSecret leaves the API unauthenticated, which is the
// expected setup for a backend bound to the loopback interface.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}
