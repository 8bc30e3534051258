package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the batchfs application
var rootCmd = newRootCmd()

// version will be set by main
var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batchfs",
		Short: "Batched file operations for AI assistants",
		Long: `batchfs executes batches of file operations (create, read, update, delete,
copy, move) with bounded concurrency, grouping by type, per-operation retry
and partial-failure reporting.

It can run as:
  - An MCP (Model Context Protocol) server for AI assistants (serve)
  - A one-shot CLI that executes a JSON batch request (run)`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newGenerateDocsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "batchfs version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
