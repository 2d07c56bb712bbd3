/*
Package cli provides helpers shared by the tailor commands.

Output:

Commands print either aligned text tables or JSON:

	f := cli.NewFormatter(cli.FormatJSON)
	if err := f.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Values implementing Table are rendered as columns by the text formatter.

Errors:

ConfigError and CommandError distinguish a bad configuration from a failed
command; ExitCode maps them to the process exit status.

Signals:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
