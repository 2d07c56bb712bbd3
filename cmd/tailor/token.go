package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"resumetailor-hq/tailor/pkg/cli"
	"resumetailor-hq/tailor/pkg/config"
)

var tokenFlags struct {
	subject string
	email   string
	ttl     time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a user token for static auth mode",
	Long: `Sign a short-lived user token with the configured shared secret.

Only available when auth.mode is "static". Intended for local development
and smoke tests against a running server.

Examples:
  # Issue a one-hour token
  tailor token --subject user-123 --email dev@example.com

  # Use it
  curl -H "Authorization: Bearer $(tailor token --subject user-123)" localhost:8080/usage`,
	RunE: issueToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenFlags.subject, "subject", "", "token subject (required)")
	tokenCmd.Flags().StringVar(&tokenFlags.email, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenFlags.ttl, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return configLoadError(err)
	}
	if cfg.Auth.Mode != "static" {
		return cli.NewConfigError("auth.mode", fmt.Sprintf("token requires static mode, got %q", cfg.Auth.Mode))
	}

	secretMgr, stopSecrets, err := prepareSecrets(cmd.Context(), cfg)
	if err != nil {
		return cli.NewCommandError("token", err)
	}
	defer stopSecrets()

	v, err := staticValidator(cmd.Context(), cfg.Auth, secretMgr)
	if err != nil {
		return cli.NewConfigError("auth.shared_secret", err.Error())
	}
	tok, err := v.Sign(tokenFlags.subject, tokenFlags.email, tokenFlags.ttl)
	if err != nil {
		return cli.NewCommandError("token", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
