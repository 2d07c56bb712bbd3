// Tailor is the backend for a resume-tailoring service.
//
// It exposes an HTTP API that accepts PDF resumes, extracts their text,
// asks a generative model to score them against job descriptions or to
// structure them into reusable entries, and stores the results. Every
// call to a paid upstream (text extraction, model completion) is admitted
// against a per-identity daily quota first.
//
// Usage:
//
//	# Start the server with the default configuration
//	tailor run
//
//	# Start with a custom configuration file
//	tailor run --config /etc/tailor/config.yaml
//
//	# Check a configuration file
//	tailor validate --config config.yaml
//
//	# Show today's quota usage for an identity
//	tailor usage --identity guest_203.0.113.5
//
//	# Remove expired quota records and guest results once
//	tailor sweep
package main

import (
	"fmt"
	"os"

	"resumetailor-hq/tailor/pkg/cli"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
