package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the root CLI command with all subcommands registered.
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "invoice-ledger",
		Short: "File invoice attachments into monthly folders and ledgers",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newProcessCommand(),
		newExtractCommand(),
		newLedgerCommand(),
		newMigrateCommand(),
		newWatchCommand(),
	)

	return rootCmd
}
