// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator, then cross-field rules.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the configuration from the environment.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	// godotenv does not override variables already present in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := checkSecretBackend(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkSecretBackend enforces the rules validator tags cannot express.
func checkSecretBackend(cfg *Config) error {
	if cfg.Secrets.Backend != SecretBackendEnv {
		return nil
	}
	if cfg.Environment != "local" {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("SECRET_BACKEND=env is only allowed when APP_ENV=local (got %q)", cfg.Environment),
		}
	}
	if cfg.Secrets.LocalKey.IsZero() {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "STRIPE_SECRET_KEY is required when SECRET_BACKEND=env",
		}
	}
	return nil
}
