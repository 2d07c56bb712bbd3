package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"resumetailor-hq/tailor/pkg/api/handlers"
	"resumetailor-hq/tailor/pkg/cli"
	"resumetailor-hq/tailor/pkg/config"
	"resumetailor-hq/tailor/pkg/server"
	"resumetailor-hq/tailor/pkg/telemetry/health"
	"resumetailor-hq/tailor/pkg/telemetry/logging"
	"resumetailor-hq/tailor/pkg/telemetry/metrics"
	"resumetailor-hq/tailor/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Tailor API server",
	Long: `Start the Tailor API server with the specified configuration.

The server listens on the configured address, admits every extraction and
model call against the daily quota, and serves health, readiness, version
and metrics endpoints next to the API.

Examples:
  # Start with defaults and environment overrides
  tailor run

  # Start with a config file
  tailor run --config /etc/tailor/config.yaml

  # Override listen address
  tailor run --listen 0.0.0.0:8080

  # Validate config without starting server
  tailor run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return configLoadError(err)
	}
	cfg := config.MustGetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging.level", err.Error())
	}
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	fmt.Fprintf(out, "Tailor v%s\n", Version)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()
	if tracer.Enabled() {
		fmt.Fprintf(out, "✓ Tracing enabled (endpoint: %s)\n", cfg.Telemetry.Tracing.Endpoint)
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	secretMgr, stopSecrets, err := prepareSecrets(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer stopSecrets()

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	st, err := openStores(ctx, cfg, awsCfg, collector, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer st.Close()
	fmt.Fprintf(out, "✓ Quota store ready (%s)\n", cfg.Quota.Backend)

	svc, err := newService(ctx, cfg, awsCfg, st, collector, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintf(out, "✓ Upstreams configured (extraction: %s, generative: %s)\n",
		cfg.Extraction.Backend, cfg.Generative.Provider)

	validator, err := newValidator(ctx, cfg.Auth, secretMgr)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize auth: %w", err))
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("quota_store", health.PingCheck(st.metered.Unwrap()))
	checker.RegisterCheck("metadata_store", health.PingCheck(svc))
	fmt.Fprintf(out, "✓ Readiness checks registered (%d)\n", checker.Len())

	for _, sw := range st.sweepers(cfg.Quota.SweepSchedule, collector) {
		if err := sw.Start(ctx); err != nil {
			slog.Warn("failed to start sweeper", "error", err)
			continue
		}
		defer sw.Stop()
		if next := sw.NextRun(); next != nil {
			fmt.Fprintf(out, "✓ Expiry sweep scheduled (next: %s)\n", next.Format(time.RFC3339))
		}
	}

	srv := server.New(cfg, handlers.New(svc, logger, cfg.Server.MaxUploadBytes), server.Options{
		Validator: validator,
		Metrics:   collector,
		Health:    checker,
		BuildInfo: server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
		Logger:    logger,
	})

	fmt.Fprintf(out, "✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// configLoadError turns a load failure into one ConfigError per invalid
// field, or a single error when the file could not be read or parsed.
func configLoadError(err error) error {
	if errs := cli.ConfigErrors(err); len(errs) == 1 {
		return errs[0]
	}
	return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
}
