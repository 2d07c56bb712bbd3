package main

import (
	"context"
	"fmt"

	"resumetailor-hq/tailor/pkg/auth"
	"resumetailor-hq/tailor/pkg/config"
	"resumetailor-hq/tailor/pkg/secrets"
)

// prepareSecrets builds the secret manager and resolves, in place, every
// configuration value that is read once at startup. The shared token key
// is left as a reference and resolved per validation. The returned
// function stops the file watcher.
func prepareSecrets(ctx context.Context, cfg *config.Config) (*secrets.Manager, func() error, error) {
	var providers []secrets.Provider
	stop := func() error { return nil }

	var file *secrets.FileProvider
	if cfg.Secrets.Dir != "" {
		var err error
		file, err = secrets.NewFileProvider(cfg.Secrets.Dir, cfg.Secrets.Watch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open secrets dir: %w", err)
		}
		providers = append(providers, file)
		stop = file.Close
	}
	providers = append(providers, secrets.NewEnvProvider(cfg.Secrets.EnvPrefix))

	m := secrets.NewManager(providers, cfg.Secrets.CacheTTL)
	if file != nil {
		file.OnChange(m.Invalidate)
	}

	err := m.ResolveAll(ctx,
		&cfg.Generative.APIKey,
		&cfg.Quota.Postgres.DSN,
		&cfg.Quota.Redis.Password,
		&cfg.AWS.AccessKeyID,
		&cfg.AWS.SecretAccessKey,
		&cfg.AWS.SessionToken,
	)
	if err != nil {
		_ = stop()
		return nil, nil, err
	}
	return m, stop, nil
}

// staticValidator builds the shared-secret validator. A referenced secret
// is looked up through m on every call.
func staticValidator(ctx context.Context, cfg config.AuthConfig, m *secrets.Manager) (*auth.StaticKeyValidator, error) {
	if !config.IsSecretReference(cfg.SharedSecret) {
		return auth.NewStaticKeyValidator([]byte(cfg.SharedSecret), cfg.Issuer, cfg.Audience)
	}
	ref := cfg.SharedSecret
	key := func(ctx context.Context) ([]byte, error) {
		s, err := m.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	return auth.NewRotatingKeyValidator(ctx, key, cfg.Issuer, cfg.Audience)
}
