package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"resumetailor-hq/tailor/pkg/cli"
	"resumetailor-hq/tailor/pkg/config"
	"resumetailor-hq/tailor/pkg/telemetry/logging"
	"resumetailor-hq/tailor/pkg/telemetry/metrics"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired quota records and guest results once",
	Long: `Run one expiry pass over every backend without native record expiry
(memory, sqlite, postgres quota stores; memory and sqlite metadata stores).

Redis and DynamoDB expire records themselves and are skipped.

Examples:
  # Sweep using the configured backends
  tailor sweep --config config.yaml`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return configLoadError(err)
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging.level", err.Error())
	}
	slog.SetDefault(logger)

	ctx := cmd.Context()
	_, stopSecrets, err := prepareSecrets(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer stopSecrets()

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	st, err := openStores(ctx, cfg, awsCfg, collector, logger)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer st.Close()

	sweepers := st.sweepers(cfg.Quota.SweepSchedule, collector)
	if len(sweepers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sweep: configured backends expire records natively")
		return nil
	}
	total := 0
	for _, sw := range sweepers {
		total += sw.Sweep(ctx)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d expired record(s)\n", total)
	return nil
}
