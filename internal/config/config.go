// Package config defines the deploy-time configuration of the signup function.
// Configuration is loaded once per cold start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct defaults (Lowest)
//
// The payment processor's API key is deliberately absent: it is fetched from
// the secret store on every invocation, never held in Config (except for the
// env secret backend used in local development).
package config

import (
	"time"

	"cardsignup/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Secret backend identifiers accepted by SECRET_BACKEND.
const (
	SecretBackendSecretManager = "secretmanager"
	SecretBackendSSM           = "ssm"
	SecretBackendEnv           = "env"
)

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"card-signup"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server  ServerConfig
	Secrets SecretsConfig
	Billing BillingConfig
	Signup  SignupConfig
	AWS     AWSConfig
	Metrics MetricsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds the local HTTP server settings. Ignored in Lambda mode.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// SecretsConfig identifies where the processor's API key lives.
type SecretsConfig struct {
	Backend   string `envconfig:"SECRET_BACKEND" default:"secretmanager" validate:"oneof=secretmanager ssm env"`
	ProjectID string `envconfig:"GCP_PROJECT_ID" default:"lexical-helix-354113" validate:"required"`
	SecretID  string `envconfig:"STRIPE_SECRET_ID" default:"stripe_secret" validate:"required"`
	// Version is a version number or the alias "latest".
	Version string `envconfig:"STRIPE_SECRET_VERSION" default:"1" validate:"required"`

	// LocalKey is only read by the env backend.
	LocalKey SecretString `envconfig:"STRIPE_SECRET_KEY"`
}

// BillingConfig holds the payment processor settings.
type BillingConfig struct {
	PlanID string `envconfig:"STRIPE_PLAN_ID" default:"plan_LsaghAN57FC81F" validate:"required"`
	// APIURL overrides the processor base URL (stripe-mock, tests).
	APIURL  string        `envconfig:"STRIPE_API_URL" validate:"omitempty,url"`
	Timeout time.Duration `envconfig:"STRIPE_TIMEOUT" default:"20s"`
}

// SignupConfig holds the behavior switches of the signup handler.
type SignupConfig struct {
	// UniformStatus answers every error with HTTP 200. When false, the error
	// kind selects the status code.
	UniformStatus bool `envconfig:"SIGNUP_UNIFORM_STATUS" default:"true"`
	// Compensate undoes created processor resources when a later step fails.
	Compensate bool `envconfig:"SIGNUP_COMPENSATE" default:"true"`
}

// AWSConfig holds AWS regional settings and resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// OrphanQueueURL receives records of resources whose compensation failed.
	OrphanQueueURL string `envconfig:"ORPHAN_QUEUE_URL" validate:"omitempty,url"`
	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// MetricsConfig holds CloudWatch settings.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"ENABLE_METRICS" default:"false"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"CardSignup"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
