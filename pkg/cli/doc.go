/*
Package cli provides helpers shared by the chatproxy commands: output
formatting, exit codes and signal handling.

Output Formatting:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal Handling:

	ctx, cancel := cli.SetupSignalHandler(context.Background(), nil)
	defer cancel()
	// ctx is canceled on SIGINT or SIGTERM; a second signal exits at once.

Exit Codes:

	os.Exit(cli.ExitCode(err))
*/
package cli
