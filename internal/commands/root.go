package commands

import (
	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-categorizer/internal/api"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "statement-categorizer",
		Short: "Bank statement PDF parser and categorizer",
		Long: `Extracts transactions from bank statement PDFs, assigns each one a
spending category and totals them.

Run "serve" for the HTTP API or "parse" to convert files locally.`,
		Version: api.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newCategoriesCommand())

	return rootCmd
}
