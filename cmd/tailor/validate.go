package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"resumetailor-hq/tailor/pkg/cli"
	"resumetailor-hq/tailor/pkg/config"
)

var validateFlags struct {
	format string
	noEnv  bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and environment overrides,
and report every invalid field.

Exits with status 2 when the configuration is invalid.

Examples:
  # Validate the default configuration
  tailor validate

  # Validate a file and print the result as JSON
  tailor validate --config config.yaml --format json

  # Validate the file as written, ignoring TAILOR_* variables and .env
  tailor validate --config config.yaml --no-env`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
	validateCmd.Flags().BoolVar(&validateFlags.noEnv, "no-env", false, "ignore environment overrides and .env files")
}

type fieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validationReport is the result of validate. It renders as a table of
// problems, or of effective backends when the configuration is valid.
type validationReport struct {
	Path     string            `json:"path"`
	Valid    bool              `json:"valid"`
	Backends map[string]string `json:"backends,omitempty"`
	Errors   []fieldProblem    `json:"errors,omitempty"`
}

func (r *validationReport) Header() []string {
	if r.Valid {
		return []string{"COMPONENT", "BACKEND"}
	}
	return []string{"FIELD", "PROBLEM"}
}

func (r *validationReport) Rows() [][]string {
	if !r.Valid {
		rows := make([][]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			field := e.Field
			if field == "" {
				field = "-"
			}
			rows = append(rows, []string{field, e.Message})
		}
		return rows
	}
	var rows [][]string
	for _, name := range []string{"auth", "quota", "storage", "extraction", "generative", "metadata"} {
		rows = append(rows, []string{name, r.Backends[name]})
	}
	return rows
}

// buildValidationReport loads path and describes the outcome.
func buildValidationReport(path string, withEnv bool) *validationReport {
	report := &validationReport{Path: path}
	if report.Path == "" {
		report.Path = "(defaults)"
	}

	load := config.LoadConfig
	if withEnv {
		load = config.LoadConfigWithEnvOverrides
	}
	cfg, err := load(path)
	if err != nil {
		for _, ce := range cli.ConfigErrors(err) {
			report.Errors = append(report.Errors, fieldProblem{Field: ce.Field, Message: ce.Message})
		}
		return report
	}

	report.Valid = true
	report.Backends = map[string]string{
		"auth":       cfg.Auth.Mode,
		"quota":      cfg.Quota.Backend,
		"storage":    cfg.Storage.Backend,
		"extraction": cfg.Extraction.Backend + "/" + cfg.Extraction.Mode,
		"generative": cfg.Generative.Provider,
		"metadata":   cfg.Metadata.Backend,
	}
	return report
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	report := buildValidationReport(cfgFile, !validateFlags.noEnv)
	out := cmd.OutOrStdout()

	if format == cli.FormatText {
		if report.Valid {
			fmt.Fprintf(out, "✓ Configuration valid: %s\n\n", report.Path)
		} else {
			fmt.Fprintf(out, "✗ Configuration invalid: %s\n\n", report.Path)
		}
	}
	if err := cli.NewFormatter(format).FormatTo(out, report); err != nil {
		return cli.NewCommandError("validate", err)
	}

	if !report.Valid {
		return cli.NewConfigError("", fmt.Sprintf("%d problem(s) in %s", len(report.Errors), report.Path))
	}
	return nil
}
