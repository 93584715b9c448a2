package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every configuration key when read from the environment.
const envPrefix = "CUMO"

const defaultPort = 5001

// legacyEnv lists environment variable names accepted in addition to the
// prefixed ones, in precedence order.
var legacyEnv = map[string][]string{
	"server.port":               {"CUMO_SERVER_PORT", "CUMO_BACKEND_PORT", "PORT"},
	"server.host":               {"CUMO_SERVER_HOST", "CUMO_BACKEND_HOST"},
	"calendar.credentials_path": {"CUMO_CALENDAR_CREDENTIALS_PATH", "CUMO_GOOGLE_CREDENTIALS"},
	"calendar.token_path":       {"CUMO_CALENDAR_TOKEN_PATH", "CUMO_GOOGLE_TOKEN"},
}

// setDefaults registers the default value of every key so that viper
// can resolve environment overrides for all of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("queue.driver", "sqlite")
	v.SetDefault("queue.path", "cumo.db")
	v.SetDefault("queue.database_url", "")
	v.SetDefault("queue.poll_interval_ms", 500)
	v.SetDefault("queue.shutdown_timeout_seconds", 5)
	v.SetDefault("queue.recover_running", true)

	v.SetDefault("calendar.credentials_path", "credentials.json")
	v.SetDefault("calendar.token_path", "token.json")

	v.SetDefault("settings.path", "settings.toml")

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60*24*30)
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the given config file when path is
// non-empty. Without a path, config.yaml in the working directory is used
// if present.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		bindArgs := append([]string{key}, names...)
		if err := v.BindEnv(bindArgs...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	resolvePort(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolvePort replaces a port that is not a number, such as a stray PORT
// from the environment, with the default. Numeric but out of range values
// are left for validation to reject.
func resolvePort(v *viper.Viper) {
	if _, err := cast.ToIntE(v.Get("server.port")); err != nil {
		v.Set("server.port", defaultPort)
	}
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
