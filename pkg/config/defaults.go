package config

import (
	"time"

	"resumetailor-hq/tailor/pkg/quota"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress    = "127.0.0.1:8080"
	DefaultReadTimeout      = 30 * time.Second
	DefaultWriteTimeout     = 150 * time.Second
	DefaultIdleTimeout      = 120 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultRequestTimeout   = 120 * time.Second
	DefaultMaxHeaderBytes   = 1048576  // 1MB
	DefaultMaxUploadBytes   = 10485760 // 10MB
	DefaultTrustedProxyHops = 1
	DefaultCORSMaxAge       = 3600

	// Auth defaults
	DefaultAuthMode            = "none"
	DefaultJWKSRefreshInterval = 15 * time.Minute
	DefaultClockSkew           = 30 * time.Second

	// Quota defaults
	DefaultQuotaBackend      = "sqlite"
	DefaultQuotaSQLitePath   = "data/quota.db"
	DefaultQuotaBusyTimeout  = 5 * time.Second
	DefaultQuotaSweep        = "@every 15m"
	DefaultQuotaPGTable      = "quota_records"
	DefaultQuotaRedisPrefix  = "tailor:quota:"
	DefaultQuotaRedisTimeout = 5 * time.Second
	DefaultQuotaDynamoTable  = "ApiUsageLimits"

	// AWS defaults
	DefaultAWSRegion = "us-east-1"

	// Storage defaults
	DefaultStorageBackend = "filesystem"
	DefaultStorageRoot    = "data/objects"
	DefaultPresignTTL     = time.Hour

	// Extraction defaults
	DefaultExtractionBackend  = "pdf"
	DefaultExtractionMode     = "sync"
	DefaultPollInterval       = 5 * time.Second
	DefaultMaxPollAttempts    = 60
	DefaultGenerativeProvider = "bedrock"
	DefaultBedrockModel       = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultGeminiModel        = "gemini-2.5-flash"
	DefaultGenerativeTimeout  = 60 * time.Second
	DefaultTemperature        = 0.3
	DefaultScoreMaxTokens     = 1024
	DefaultStructureMaxTokens = 2048

	// Metadata defaults
	DefaultMetadataBackend = "sqlite"
	DefaultMetadataPath    = "data/metadata.db"
	DefaultResultsTable    = "ResumeAnalysisResults"
	DefaultMasterTable     = "ResumeMetadata"
	DefaultGuestResultTTL  = time.Hour

	// Telemetry defaults
	DefaultLoggingLevel    = "info"
	DefaultLoggingFormat   = "json"
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNS       = "tailor"
	DefaultTracingSampler  = "ratio"
	DefaultTracingRatio    = 0.1
	DefaultServiceName     = "tailor"
	DefaultTracingTimeout  = 10 * time.Second
	DefaultLivenessPath    = "/health"
	DefaultReadinessPath   = "/ready"
	DefaultHealthCheckTime = 5 * time.Second

	// Secrets defaults
	DefaultSecretEnvPrefix = "TAILOR_SECRET_"
	DefaultSecretCacheTTL  = 5 * time.Minute
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = DefaultAuthMode
	}
	if cfg.Auth.RefreshInterval == 0 {
		cfg.Auth.RefreshInterval = DefaultJWKSRefreshInterval
	}
	if cfg.Auth.ClockSkew == 0 {
		cfg.Auth.ClockSkew = DefaultClockSkew
	}

	applyQuotaDefaults(&cfg.Quota)

	if cfg.AWS.Region == "" {
		cfg.AWS.Region = DefaultAWSRegion
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = DefaultStorageRoot
	}
	if cfg.Storage.PresignTTL == 0 {
		cfg.Storage.PresignTTL = DefaultPresignTTL
	}

	if cfg.Extraction.Backend == "" {
		cfg.Extraction.Backend = DefaultExtractionBackend
	}
	if cfg.Extraction.Mode == "" {
		cfg.Extraction.Mode = DefaultExtractionMode
	}
	if cfg.Extraction.PollInterval == 0 {
		cfg.Extraction.PollInterval = DefaultPollInterval
	}
	if cfg.Extraction.MaxPollAttempts == 0 {
		cfg.Extraction.MaxPollAttempts = DefaultMaxPollAttempts
	}

	applyGenerativeDefaults(&cfg.Generative)

	if cfg.Metadata.Backend == "" {
		cfg.Metadata.Backend = DefaultMetadataBackend
	}
	if cfg.Metadata.SQLitePath == "" {
		cfg.Metadata.SQLitePath = DefaultMetadataPath
	}
	if cfg.Metadata.ResultsTable == "" {
		cfg.Metadata.ResultsTable = DefaultResultsTable
	}
	if cfg.Metadata.MasterTable == "" {
		cfg.Metadata.MasterTable = DefaultMasterTable
	}
	if cfg.Metadata.GuestResultTTL == 0 {
		cfg.Metadata.GuestResultTTL = DefaultGuestResultTTL
	}

	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretCacheTTL
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.TrustedProxyHops == 0 {
		s.TrustedProxyHops = DefaultTrustedProxyHops
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}

	if len(s.CORS.AllowedOrigins) == 0 {
		s.CORS.AllowedOrigins = []string{"*"}
	}
	if len(s.CORS.AllowedMethods) == 0 {
		s.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(s.CORS.AllowedHeaders) == 0 {
		s.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if len(s.CORS.ExposedHeaders) == 0 {
		s.CORS.ExposedHeaders = []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"X-RateLimit-Bedrock-Limit",
			"X-RateLimit-Bedrock-Remaining",
			"X-RateLimit-Textract-Limit",
			"X-RateLimit-Textract-Remaining",
		}
	}
	if s.CORS.MaxAge == 0 {
		s.CORS.MaxAge = DefaultCORSMaxAge
	}
}

func applyQuotaDefaults(q *QuotaConfig) {
	if q.Backend == "" {
		q.Backend = DefaultQuotaBackend
	}

	// Fill any ceiling not given in the file from the built-in table.
	if q.Ceilings == nil {
		q.Ceilings = make(map[string]map[string]int64)
	}
	for tier, services := range quota.DefaultCeilings() {
		if q.Ceilings[string(tier)] == nil {
			q.Ceilings[string(tier)] = make(map[string]int64)
		}
		for svc, limit := range services {
			if _, ok := q.Ceilings[string(tier)][string(svc)]; !ok {
				q.Ceilings[string(tier)][string(svc)] = limit
			}
		}
	}

	if q.SweepSchedule == "" {
		q.SweepSchedule = DefaultQuotaSweep
	}
	if q.SQLite.Path == "" {
		q.SQLite.Path = DefaultQuotaSQLitePath
	}
	if q.SQLite.BusyTimeout == 0 {
		q.SQLite.BusyTimeout = DefaultQuotaBusyTimeout
	}
	if q.Postgres.Table == "" {
		q.Postgres.Table = DefaultQuotaPGTable
	}
	if q.Redis.KeyPrefix == "" {
		q.Redis.KeyPrefix = DefaultQuotaRedisPrefix
	}
	if q.Redis.DialTimeout == 0 {
		q.Redis.DialTimeout = DefaultQuotaRedisTimeout
	}
	if q.DynamoDB.Table == "" {
		q.DynamoDB.Table = DefaultQuotaDynamoTable
	}
}

func applyGenerativeDefaults(g *GenerativeConfig) {
	if g.Provider == "" {
		g.Provider = DefaultGenerativeProvider
	}
	if g.ModelID == "" {
		if g.Provider == "gemini" {
			g.ModelID = DefaultGeminiModel
		} else {
			g.ModelID = DefaultBedrockModel
		}
	}
	if g.Timeout == 0 {
		g.Timeout = DefaultGenerativeTimeout
	}
	if g.Temperature == 0 {
		g.Temperature = DefaultTemperature
	}
	if g.ScoreMaxTokens == 0 {
		g.ScoreMaxTokens = DefaultScoreMaxTokens
	}
	if g.StructureMaxTokens == 0 {
		g.StructureMaxTokens = DefaultStructureMaxTokens
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNS
	}
	if len(t.Metrics.RequestDurationBuckets) == 0 {
		t.Metrics.RequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTime
	}
}

// CeilingTable converts the configured ceilings to a quota.Ceilings table.
func (q QuotaConfig) CeilingTable() quota.Ceilings {
	out := make(quota.Ceilings, len(q.Ceilings))
	for tier, services := range q.Ceilings {
		m := make(map[quota.Service]int64, len(services))
		for svc, limit := range services {
			m[quota.Service(svc)] = limit
		}
		out[quota.Tier(tier)] = m
	}
	return out
}
