package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"resumetailor-hq/tailor/pkg/quota"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateQuota(&cfg.Quota)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateExtraction(&cfg.Extraction, &cfg.Storage)...)
	errs = append(errs, validateGenerative(&cfg.Generative)...)
	errs = append(errs, validateMetadata(&cfg.Metadata)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.request_timeout", Message: "request timeout must be positive"})
	} else if cfg.WriteTimeout > 0 && cfg.WriteTimeout <= cfg.RequestTimeout {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: fmt.Sprintf("write timeout (%s) must exceed request timeout (%s)", cfg.WriteTimeout, cfg.RequestTimeout),
		})
	}
	if cfg.TrustedProxyHops < 0 {
		errs = append(errs, FieldError{Field: "server.trusted_proxy_hops", Message: "trusted proxy hops must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "max header bytes must be non-negative"})
	}
	if cfg.MaxUploadBytes <= 0 {
		errs = append(errs, FieldError{Field: "server.max_upload_bytes", Message: "max upload bytes must be positive"})
	}
	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "none":
	case "jwks":
		if cfg.JWKSURL == "" {
			errs = append(errs, FieldError{Field: "auth.jwks_url", Message: "jwks url is required in jwks mode"})
		} else if u, err := url.Parse(cfg.JWKSURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{Field: "auth.jwks_url", Message: "jwks url must be an absolute URL"})
		}
	case "static":
		if !IsSecretReference(cfg.SharedSecret) && len(cfg.SharedSecret) < 32 {
			errs = append(errs, FieldError{Field: "auth.shared_secret", Message: "shared secret must be at least 32 bytes"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "auth.mode",
			Message: fmt.Sprintf("invalid auth mode %q (must be none, jwks or static)", cfg.Mode),
		})
	}
	return errs
}

func validateQuota(cfg *QuotaConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "quota.postgres.dsn", Message: "dsn is required for the postgres backend"})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{Field: "quota.redis.addr", Message: "address is required for the redis backend"})
		}
	case "dynamodb":
	default:
		errs = append(errs, FieldError{
			Field:   "quota.backend",
			Message: fmt.Sprintf("invalid quota backend %q (must be memory, sqlite, postgres, redis or dynamodb)", cfg.Backend),
		})
	}

	for tier, services := range cfg.Ceilings {
		if !quota.Tier(tier).Valid() {
			errs = append(errs, FieldError{Field: "quota.ceilings." + tier, Message: "unknown tier"})
			continue
		}
		for svc := range services {
			if !slices.Contains(quota.Services, quota.Service(svc)) {
				errs = append(errs, FieldError{Field: "quota.ceilings." + tier + "." + svc, Message: "unknown service"})
			}
		}
	}
	if err := cfg.CeilingTable().Validate(); err != nil {
		errs = append(errs, FieldError{Field: "quota.ceilings", Message: err.Error()})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "s3":
		if cfg.Bucket == "" {
			errs = append(errs, FieldError{Field: "storage.bucket", Message: "bucket is required for the s3 backend"})
		}
	case "filesystem":
		if cfg.Root == "" {
			errs = append(errs, FieldError{Field: "storage.root", Message: "root is required for the filesystem backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid storage backend %q (must be s3 or filesystem)", cfg.Backend),
		})
	}
	if cfg.PresignTTL <= 0 {
		errs = append(errs, FieldError{Field: "storage.presign_ttl", Message: "presign ttl must be positive"})
	}
	return errs
}

func validateExtraction(cfg *ExtractionConfig, storage *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "pdf":
	case "textract":
		if storage.Backend != "s3" {
			errs = append(errs, FieldError{Field: "extraction.backend", Message: "textract reads documents from s3; storage.backend must be s3"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "extraction.backend",
			Message: fmt.Sprintf("invalid extraction backend %q (must be textract or pdf)", cfg.Backend),
		})
	}
	if cfg.Mode != "sync" && cfg.Mode != "async" {
		errs = append(errs, FieldError{Field: "extraction.mode", Message: fmt.Sprintf("invalid mode %q (must be sync or async)", cfg.Mode)})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "extraction.poll_interval", Message: "poll interval must be positive"})
	}
	if cfg.MaxPollAttempts <= 0 {
		errs = append(errs, FieldError{Field: "extraction.max_poll_attempts", Message: "max poll attempts must be positive"})
	}
	return errs
}

func validateGenerative(cfg *GenerativeConfig) []FieldError {
	var errs []FieldError

	switch cfg.Provider {
	case "bedrock":
	case "gemini":
		if cfg.APIKey == "" {
			errs = append(errs, FieldError{Field: "generative.api_key", Message: "api key is required for gemini"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "generative.provider",
			Message: fmt.Sprintf("invalid provider %q (must be bedrock or gemini)", cfg.Provider),
		})
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		errs = append(errs, FieldError{Field: "generative.temperature", Message: "temperature must be between 0 and 1"})
	}
	if cfg.ScoreMaxTokens <= 0 {
		errs = append(errs, FieldError{Field: "generative.score_max_tokens", Message: "must be positive"})
	}
	if cfg.StructureMaxTokens <= 0 {
		errs = append(errs, FieldError{Field: "generative.structure_max_tokens", Message: "must be positive"})
	}
	return errs
}

func validateMetadata(cfg *MetadataConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "dynamodb":
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{Field: "metadata.sqlite_path", Message: "path is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "metadata.backend",
			Message: fmt.Sprintf("invalid metadata backend %q (must be memory, sqlite or dynamodb)", cfg.Backend),
		})
	}
	if cfg.GuestResultTTL <= 0 {
		errs = append(errs, FieldError{Field: "metadata.guest_result_ttl", Message: "guest result ttl must be positive"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be one of: %s)", cfg.Logging.Level, strings.Join(validLevels, ", ")),
		})
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Logging.Format),
		})
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
	}
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: fmt.Sprintf("invalid sampler %q", cfg.Tracing.Sampler)})
		}
	}
	return errs
}

func validateSecrets(cfg *SecretsConfig) []FieldError {
	var errs []FieldError
	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{Field: "secrets.cache_ttl", Message: "cache ttl must not be negative"})
	}
	if cfg.Watch && cfg.Dir == "" {
		errs = append(errs, FieldError{Field: "secrets.watch", Message: "watch requires secrets.dir"})
	}
	return errs
}
