package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/batchfs/internal/logging"
	"github.com/teemow/batchfs/internal/server"
	"github.com/teemow/batchfs/internal/tools/batch"
)

// ErrBatchFailed is returned by run --fail-on-error when an operation failed.
var ErrBatchFailed = errors.New("batch finished with failed operations")

type runOptions struct {
	File        string
	Debug       bool
	FailOnError bool
	Engine      engineSettings
}

func newRunCmd() *cobra.Command {
	var (
		file        string
		debugMode   bool
		failOnError bool
		engine      engineFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch request and print the summary",
		Long: `Execute a JSON batch request locally and print the batch summary as JSON.

The request has the same shape as the batch_file_operations tool arguments:

  {
    "operations": [
      {"type": "create", "path": "notes/a.txt", "content": "hello"},
      {"type": "copy", "path": "notes/a.txt", "destination": "notes/b.txt"}
    ],
    "options": {"maxConcurrent": 4, "stopOnError": true}
  }

The request is read from --file, or from stdin when --file is empty or "-".
Invalid requests exit non-zero without touching any file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := engine.resolve(cmd)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), runOptions{
				File:        file,
				Debug:       debugMode,
				FailOnError: failOnError,
				Engine:      settings,
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Request file (default: stdin)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when any operation failed")
	engine.register(cmd)

	return cmd
}

func readRequest(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read request from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	return data, nil
}

func runBatch(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, opts runOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	data, err := readRequest(stdin, opts.File)
	if err != nil {
		return err
	}

	sc, err := server.NewServerContext(ctx, server.Config{
		Root:     opts.Engine.Root,
		ReadOnly: opts.Engine.ReadOnly,
		Defaults: opts.Engine.Defaults,
		Logger:   logging.NewLogger(stderr, opts.Debug),
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() { _ = sc.Shutdown() }()

	req, err := sc.Validator().ParseJSON(data)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	summary := sc.Coordinator().Run(ctx, req)

	text, err := batch.FormatSummary(summary)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(stdout, text); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if opts.FailOnError && summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrBatchFailed, summary.Failed, summary.Total)
	}
	return nil
}
