package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TAILOR_"

// LoadConfig loads, defaults and validates the YAML file at path without
// consulting the environment.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides. A .env file next to the configuration file, or in
// the working directory, is read first; variables already set in the
// process environment win over the file.
//
// The loading sequence is:
// 1. Load .env files
// 2. Load YAML from file (an empty path starts from defaults)
// 3. Apply default values
// 4. Apply environment variable overrides
// 5. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	LoadDotEnv(path)

	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// parseFile reads and parses path. An empty path yields the defaults.
func parseFile(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env from the configuration file's directory and from
// the working directory. Missing files are ignored and existing variables
// are not overwritten.
func LoadDotEnv(configPath string) {
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			loadIfExists(filepath.Join(filepath.Dir(abs), ".env"))
		}
	}
	loadIfExists(".env")
}

func loadIfExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Debug("failed to load .env file", "path", path, "error", err)
		return
	}
	slog.Debug("loaded environment from .env", "path", path)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format TAILOR_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envBool("SERVER_TRUST_FORWARDED_FOR", &cfg.Server.TrustForwardedFor)
	if val := os.Getenv(EnvPrefix + "SERVER_MAX_UPLOAD_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = i
		}
	}

	// Auth overrides
	envString("AUTH_MODE", &cfg.Auth.Mode)
	envString("AUTH_JWKS_URL", &cfg.Auth.JWKSURL)
	envString("AUTH_ISSUER", &cfg.Auth.Issuer)
	envString("AUTH_AUDIENCE", &cfg.Auth.Audience)
	envString("AUTH_SHARED_SECRET", &cfg.Auth.SharedSecret)

	// Secrets overrides
	envString("SECRETS_DIR", &cfg.Secrets.Dir)
	envBool("SECRETS_WATCH", &cfg.Secrets.Watch)

	// Quota overrides
	envString("QUOTA_BACKEND", &cfg.Quota.Backend)
	envString("QUOTA_SQLITE_PATH", &cfg.Quota.SQLite.Path)
	envString("QUOTA_POSTGRES_DSN", &cfg.Quota.Postgres.DSN)
	envString("QUOTA_REDIS_ADDR", &cfg.Quota.Redis.Addr)
	envString("QUOTA_REDIS_PASSWORD", &cfg.Quota.Redis.Password)
	envString("QUOTA_DYNAMODB_TABLE", &cfg.Quota.DynamoDB.Table)
	envString("QUOTA_SWEEP_SCHEDULE", &cfg.Quota.SweepSchedule)

	// AWS overrides
	envString("AWS_REGION", &cfg.AWS.Region)
	envString("AWS_ROLE_ARN", &cfg.AWS.RoleARN)
	envString("AWS_ENDPOINT", &cfg.AWS.Endpoint)

	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_BUCKET", &cfg.Storage.Bucket)
	envString("STORAGE_ROOT", &cfg.Storage.Root)

	// Extraction overrides
	envString("EXTRACTION_BACKEND", &cfg.Extraction.Backend)
	envString("EXTRACTION_MODE", &cfg.Extraction.Mode)

	// Generative overrides
	envString("GENERATIVE_PROVIDER", &cfg.Generative.Provider)
	envString("GENERATIVE_MODEL_ID", &cfg.Generative.ModelID)
	envString("GENERATIVE_API_KEY", &cfg.Generative.APIKey)

	// Metadata overrides
	envString("METADATA_BACKEND", &cfg.Metadata.Backend)
	envString("METADATA_SQLITE_PATH", &cfg.Metadata.SQLitePath)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
