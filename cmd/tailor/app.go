package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"resumetailor-hq/tailor/pkg/auth"
	"resumetailor-hq/tailor/pkg/awsconf"
	"resumetailor-hq/tailor/pkg/config"
	"resumetailor-hq/tailor/pkg/extraction"
	"resumetailor-hq/tailor/pkg/generative"
	"resumetailor-hq/tailor/pkg/metadata"
	"resumetailor-hq/tailor/pkg/objectstore"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
	"resumetailor-hq/tailor/pkg/quota/store"
	"resumetailor-hq/tailor/pkg/resume"
	"resumetailor-hq/tailor/pkg/secrets"
	"resumetailor-hq/tailor/pkg/telemetry/metrics"
)

// stores holds the persistent backends shared by every command.
type stores struct {
	// metered wraps the quota backend; Unwrap reaches the raw store.
	metered  *store.Metered
	limiter  *limiter.Limiter
	metadata metadata.Store
}

func (s *stores) Close() error {
	var errs []error
	if s.metered != nil {
		errs = append(errs, s.metered.Unwrap().Close())
	}
	if s.metadata != nil {
		errs = append(errs, s.metadata.Close())
	}
	return errors.Join(errs...)
}

// sweepers returns one sweeper per backend without native record expiry.
func (s *stores) sweepers(schedule string, rec store.SweepRecorder) []*store.Sweeper {
	var out []*store.Sweeper
	if _, ok := s.metered.Unwrap().(quota.Expirer); ok {
		out = append(out, store.NewSweeper(s.metered, schedule, nil).Named("quota.sweeper").WithRecorder(rec))
	}
	if exp, ok := s.metadata.(quota.Expirer); ok {
		out = append(out, store.NewSweeper(exp, schedule, nil).Named("metadata.sweeper"))
	}
	return out
}

// awsRequired reports whether any configured backend talks to AWS.
func awsRequired(cfg *config.Config) bool {
	return cfg.Storage.Backend == "s3" ||
		cfg.Extraction.Backend == "textract" ||
		cfg.Generative.Provider == "bedrock" ||
		cfg.Metadata.Backend == "dynamodb" ||
		cfg.Quota.Backend == "dynamodb"
}

func loadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if !awsRequired(cfg) {
		return aws.Config{}, nil
	}
	awsCfg, err := awsconf.Load(ctx, cfg.AWS)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return awsCfg, nil
}

// quotaStoreConfig maps the quota section onto the store factory's config.
func quotaStoreConfig(cfg config.QuotaConfig, awsCfg aws.Config) store.Config {
	sc := store.Config{
		Backend: cfg.Backend,
		SQLite: store.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		},
		Postgres: store.PostgresConfig{
			DSN:   cfg.Postgres.DSN,
			Table: cfg.Postgres.Table,
		},
		Redis: store.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout,
		},
		DynamoDB: store.DynamoConfig{Table: cfg.DynamoDB.Table},
	}
	if cfg.Backend == "dynamodb" {
		sc.DynamoDB.Client = dynamodb.NewFromConfig(awsCfg)
	}
	return sc
}

// ensureParentDir creates the directory holding a database file.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// openStores opens the quota and metadata backends and builds the limiter.
func openStores(ctx context.Context, cfg *config.Config, awsCfg aws.Config, collector *metrics.Collector, logger *slog.Logger) (*stores, error) {
	s := &stores{}

	if cfg.Quota.Backend == "sqlite" {
		if err := ensureParentDir(cfg.Quota.SQLite.Path); err != nil {
			return nil, err
		}
	}
	qs, err := store.New(ctx, quotaStoreConfig(cfg.Quota, awsCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open quota store: %w", err)
	}
	s.metered = store.NewMetered(qs, cfg.Quota.Backend, collector)
	s.limiter, err = limiter.New(s.metered, cfg.Quota.CeilingTable(),
		limiter.WithLogger(logger),
		limiter.WithRecorder(collector),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create limiter: %w", err)
	}

	if cfg.Metadata.Backend == "sqlite" {
		if err := ensureParentDir(cfg.Metadata.SQLitePath); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.metadata, err = metadata.New(cfg.Metadata, awsCfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return s, nil
}

// newService builds the resume service on top of opened stores.
func newService(ctx context.Context, cfg *config.Config, awsCfg aws.Config, s *stores, collector *metrics.Collector, logger *slog.Logger) (*resume.Service, error) {
	objects, err := objectstore.New(cfg.Storage, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}

	extractor, err := extraction.New(cfg.Extraction, awsCfg, objects, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	completer, err := generative.New(ctx, cfg.Generative, awsCfg, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}

	return resume.New(resume.Deps{
		Limiter:   s.limiter,
		Objects:   objects,
		Extractor: extractor,
		Completer: completer,
		Metadata:  s.metadata,
		Logger:    logger,
	}, resume.Options{
		PresignTTL:         cfg.Storage.PresignTTL,
		GuestResultTTL:     cfg.Metadata.GuestResultTTL,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		ScoreMaxTokens:     cfg.Generative.ScoreMaxTokens,
		StructureMaxTokens: cfg.Generative.StructureMaxTokens,
		Temperature:        cfg.Generative.Temperature,
	})
}

// newValidator returns the token validator for the configured auth mode,
// or nil when every caller is a guest.
func newValidator(ctx context.Context, cfg config.AuthConfig, m *secrets.Manager) (auth.Validator, error) {
	switch cfg.Mode {
	case "", "none":
		return nil, nil
	case "jwks":
		v, err := auth.NewJWKSValidator(ctx, auth.JWKSConfig{
			JWKSURL:         cfg.JWKSURL,
			Issuer:          cfg.Issuer,
			Audience:        cfg.Audience,
			RefreshInterval: cfg.RefreshInterval,
			ClockSkew:       cfg.ClockSkew,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	case "static":
		v, err := staticValidator(ctx, cfg, m)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
