package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"resumetailor-hq/tailor/pkg/cli"
	"resumetailor-hq/tailor/pkg/config"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
	"resumetailor-hq/tailor/pkg/telemetry/metrics"
)

var usageFlags struct {
	identity string
	format   string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's quota usage for an identity",
	Long: `Read today's counters for an identity straight from the quota store.

Identities starting with "guest_" are read against the guest ceilings,
anything else against the user ceilings.

Examples:
  # Usage for a guest
  tailor usage --identity guest_203.0.113.5

  # Usage for a signed-in user, as JSON
  tailor usage --identity 4f1c2a9e-user-sub --format json`,
	RunE: showUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVar(&usageFlags.identity, "identity", "", "identity to report (required)")
	usageCmd.Flags().StringVar(&usageFlags.format, "format", "text", "output format: text, json")
	_ = usageCmd.MarkFlagRequired("identity")
}

type serviceUsage struct {
	Service   string `json:"service"`
	Current   int64  `json:"current_usage"`
	Limit     int64  `json:"daily_limit"`
	Remaining int64  `json:"remaining"`
}

type usageReport struct {
	Identity string         `json:"identifier"`
	Tier     string         `json:"user_type"`
	Services []serviceUsage `json:"services"`
	ResetAt  time.Time      `json:"reset_time"`
}

func (r *usageReport) Header() []string {
	return []string{"SERVICE", "USED", "LIMIT", "REMAINING"}
}

func (r *usageReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Services))
	for _, s := range r.Services {
		rows = append(rows, []string{
			s.Service,
			strconv.FormatInt(s.Current, 10),
			strconv.FormatInt(s.Limit, 10),
			strconv.FormatInt(s.Remaining, 10),
		})
	}
	return rows
}

// newUsageReport collects one row per metered service.
func newUsageReport(usages []limiter.Usage) *usageReport {
	r := &usageReport{}
	for _, u := range usages {
		r.Identity = u.Identity.ID
		r.Tier = string(u.Identity.Tier)
		r.ResetAt = u.ResetAt
		r.Services = append(r.Services, serviceUsage{
			Service:   u.Service.Short(),
			Current:   u.Current,
			Limit:     u.Limit,
			Remaining: u.Remaining,
		})
	}
	return r
}

func showUsage(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(usageFlags.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return configLoadError(err)
	}

	ctx := cmd.Context()
	_, stopSecrets, err := prepareSecrets(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("usage", err)
	}
	defer stopSecrets()

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("usage", err)
	}
	st, err := openStores(ctx, cfg, awsCfg, metrics.NewCollector(&cfg.Telemetry.Metrics, nil), slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err != nil {
		return cli.NewCommandError("usage", err)
	}
	defer st.Close()

	usages := make([]limiter.Usage, 0, len(quota.Services))
	for _, svc := range quota.Services {
		u, err := st.limiter.ReadUsageByID(ctx, usageFlags.identity, svc)
		if err != nil {
			return cli.NewCommandError("usage", err)
		}
		usages = append(usages, u)
	}

	report := newUsageReport(usages)
	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "%s (%s), resets %s\n\n", report.Identity, report.Tier, report.ResetAt.Format(time.RFC3339))
	}
	if err := cli.NewFormatter(format).FormatTo(out, report); err != nil {
		return cli.NewCommandError("usage", err)
	}
	return nil
}
