package config

import (
	"strings"
	"time"
)

// Config is the root configuration structure for the tailor service.
// It contains the HTTP server, authentication, quota, AWS, storage,
// extraction, generative text, metadata and telemetry sections.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts and CORS.
	Server ServerConfig `yaml:"server"`

	// Auth contains identity token verification settings.
	Auth AuthConfig `yaml:"auth"`

	// Quota contains the daily request ceilings and the quota store backend.
	Quota QuotaConfig `yaml:"quota"`

	// AWS contains the shared AWS client configuration used by every
	// AWS-backed component.
	AWS AWSConfig `yaml:"aws"`

	// Storage contains object storage configuration for uploaded and
	// generated resume documents.
	Storage StorageConfig `yaml:"storage"`

	// Extraction contains document text extraction configuration.
	Extraction ExtractionConfig `yaml:"extraction"`

	// Generative contains generative text model configuration.
	Generative GenerativeConfig `yaml:"generative"`

	// Metadata contains configuration for the analysis result and master
	// resume lookup store.
	Metadata MetadataConfig `yaml:"metadata"`

	// Telemetry contains configuration for logging, metrics, tracing and
	// health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures how ${secret:name} references in other sections
	// are resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Scoring and structuring wait on extraction and generation,
	// so this must exceed RequestTimeout.
	// Default: 150s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the handling of a single request.
	// Default: 120s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxUploadBytes limits the decoded size of an uploaded document.
	// Default: 10485760 (10MB)
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// TrustForwardedFor takes the client address from X-Forwarded-For,
	// counting TrustedProxyHops entries from the right. Entries left of
	// that are client supplied and never used. Enable only behind proxies
	// that append to the header.
	// Default: false
	TrustForwardedFor bool `yaml:"trust_forwarded_for"`

	// TrustedProxyHops is the number of proxies in front of the server
	// that append to X-Forwarded-For.
	// Default: 1
	TrustedProxyHops int `yaml:"trusted_proxy_hops"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// SecretsConfig configures secret reference resolution.
type SecretsConfig struct {
	// EnvPrefix namespaces secret environment variables.
	// Default: "TAILOR_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret (mode 0600 or 0400). Empty disables
	// the file provider.
	Dir string `yaml:"dir"`

	// Watch clears cached file secrets when Dir changes.
	Watch bool `yaml:"watch"`

	// CacheTTL bounds how long a resolved secret is reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// IsSecretReference reports whether v contains a ${secret:name} reference.
func IsSecretReference(v string) bool {
	i := strings.Index(v, "${secret:")
	return i >= 0 && strings.Contains(v[i:], "}")
}

// ForwardedHops returns how many X-Forwarded-For entries to count from the
// right, or 0 when the header is not trusted.
func (s *ServerConfig) ForwardedHops() int {
	if !s.TrustForwardedFor {
		return 0
	}
	return s.TrustedProxyHops
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are sent.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "PUT", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders lists response headers readable by the browser.
	// Default: the X-RateLimit-* headers and X-Request-ID
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// AuthConfig contains identity token verification settings.
type AuthConfig struct {
	// Mode selects the verifier.
	// Options: "jwks" (remote key set), "static" (shared HS256 secret), "none"
	// Default: "none"
	Mode string `yaml:"mode"`

	// JWKSURL is the key set location for "jwks" mode.
	JWKSURL string `yaml:"jwks_url"`

	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string `yaml:"issuer"`

	// Audience is the expected aud (or client_id) claim. Empty disables the check.
	Audience string `yaml:"audience"`

	// RefreshInterval is the minimum key set refresh interval.
	// Default: 15m
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// ClockSkew is the tolerated clock difference for exp/nbf.
	// Default: 30s
	ClockSkew time.Duration `yaml:"clock_skew"`

	// SharedSecret is the HS256 key for "static" mode. At least 32 bytes.
	// A ${secret:name} reference is looked up on every validation.
	SharedSecret string `yaml:"shared_secret"`
}

// QuotaConfig contains daily quota settings.
type QuotaConfig struct {
	// Backend selects the quota store.
	// Options: "memory", "sqlite", "postgres", "redis", "dynamodb"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Ceilings maps tier → service → daily request ceiling. Missing entries
	// fall back to the built-in table.
	// Default: guest {bedrock_requests: 5, textract_requests: 10},
	//          user {bedrock_requests: 50, textract_requests: 100}
	Ceilings map[string]map[string]int64 `yaml:"ceilings"`

	// SweepSchedule is the cron schedule for deleting expired records on
	// backends without native expiry.
	// Default: "@every 15m"
	SweepSchedule string `yaml:"sweep_schedule"`

	// SQLite contains SQLite backend settings.
	SQLite QuotaSQLiteConfig `yaml:"sqlite"`

	// Postgres contains PostgreSQL backend settings.
	Postgres QuotaPostgresConfig `yaml:"postgres"`

	// Redis contains Redis backend settings.
	Redis QuotaRedisConfig `yaml:"redis"`

	// DynamoDB contains DynamoDB backend settings.
	DynamoDB QuotaDynamoConfig `yaml:"dynamodb"`
}

// QuotaSQLiteConfig configures the SQLite quota store.
type QuotaSQLiteConfig struct {
	// Path is the database file.
	// Default: "data/quota.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for the write lock.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// QuotaPostgresConfig configures the PostgreSQL quota store.
type QuotaPostgresConfig struct {
	// DSN is the connection string.
	DSN string `yaml:"dsn"`

	// Table is the quota table name.
	// Default: "quota_records"
	Table string `yaml:"table"`
}

// QuotaRedisConfig configures the Redis quota store.
type QuotaRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix prefixes every record key.
	// Default: "tailor:quota:"
	KeyPrefix string `yaml:"key_prefix"`

	// DialTimeout bounds connection setup.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// QuotaDynamoConfig configures the DynamoDB quota store.
type QuotaDynamoConfig struct {
	// Table is the quota table (partition key identifier, sort key
	// date_service, TTL attribute ttl).
	// Default: "ApiUsageLimits"
	Table string `yaml:"table"`
}

// AWSConfig contains shared AWS client settings.
type AWSConfig struct {
	// Region is the AWS region.
	// Default: "us-east-1"
	Region string `yaml:"region"`

	// AccessKeyID, SecretAccessKey and SessionToken select static
	// credentials. When empty the default credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`

	// RoleARN, when set, is assumed through STS on top of the base credentials.
	RoleARN string `yaml:"role_arn"`

	// RoleExternalID is passed when assuming RoleARN.
	RoleExternalID string `yaml:"role_external_id"`

	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint"`
}

// StorageConfig contains object storage settings.
type StorageConfig struct {
	// Backend selects the object store.
	// Options: "s3", "filesystem"
	// Default: "filesystem"
	Backend string `yaml:"backend"`

	// Bucket is the S3 bucket.
	Bucket string `yaml:"bucket"`

	// Root is the base directory for the filesystem backend.
	// Default: "data/objects"
	Root string `yaml:"root"`

	// PresignTTL is the lifetime of presigned download URLs.
	// Default: 1h
	PresignTTL time.Duration `yaml:"presign_ttl"`

	// UsePathStyle forces path-style S3 addressing.
	// Default: false
	UsePathStyle bool `yaml:"use_path_style"`
}

// ExtractionConfig contains document text extraction settings.
type ExtractionConfig struct {
	// Backend selects the extractor.
	// Options: "textract", "pdf"
	// Default: "pdf"
	Backend string `yaml:"backend"`

	// Mode selects synchronous or job-based extraction for "textract".
	// Options: "sync", "async"
	// Default: "sync"
	Mode string `yaml:"mode"`

	// PollInterval is the delay between job status checks in async mode.
	// Default: 5s
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxPollAttempts bounds job status checks in async mode.
	// Default: 60
	MaxPollAttempts int `yaml:"max_poll_attempts"`
}

// GenerativeConfig contains generative text settings.
type GenerativeConfig struct {
	// Provider selects the model backend.
	// Options: "bedrock", "gemini"
	// Default: "bedrock"
	Provider string `yaml:"provider"`

	// ModelID is the model identifier.
	// Default: "anthropic.claude-3-haiku-20240307-v1:0" (bedrock),
	//          "gemini-2.5-flash" (gemini)
	ModelID string `yaml:"model_id"`

	// APIKey is the Gemini API key.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single completion.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Temperature is the sampling temperature.
	// Default: 0.3
	Temperature float64 `yaml:"temperature"`

	// ScoreMaxTokens bounds the scoring response.
	// Default: 1024
	ScoreMaxTokens int `yaml:"score_max_tokens"`

	// StructureMaxTokens bounds master structuring and tailoring responses.
	// Default: 2048
	StructureMaxTokens int `yaml:"structure_max_tokens"`
}

// MetadataConfig contains lookup store settings.
type MetadataConfig struct {
	// Backend selects the store.
	// Options: "memory", "sqlite", "dynamodb"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/metadata.db"
	SQLitePath string `yaml:"sqlite_path"`

	// ResultsTable is the DynamoDB table for analysis results.
	// Default: "ResumeAnalysisResults"
	ResultsTable string `yaml:"results_table"`

	// MasterTable is the DynamoDB table for master resumes.
	// Default: "ResumeMetadata"
	MasterTable string `yaml:"master_table"`

	// GuestResultTTL is how long guest analysis results are kept.
	// Default: 1h
	GuestResultTTL time.Duration `yaml:"guest_result_ttl"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks guest addresses and e-mail addresses in log attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "tailor"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "tailor"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the liveness probe path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness probe path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each component check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// IsEnabled reports whether CORS is on.
func (c CORSConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// RedactEnabled reports whether log redaction is on.
func (c LoggingConfig) RedactEnabled() bool { return c.RedactPII == nil || *c.RedactPII }

// IsEnabled reports whether metrics collection is on.
func (c MetricsConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }
