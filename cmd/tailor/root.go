package main

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor - resume scoring and tailoring service",
	Long: `Tailor is the backend for a resume-tailoring service.

It accepts PDF resumes, extracts their text, and uses a generative model to:
  - Score a resume against a job description
  - Structure a master resume into reusable experience entries
  - Pick the entries most relevant to a new job description

Every extraction and model call is admitted against a per-identity daily
quota. Guests are identified by client address, signed-in users by token.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
