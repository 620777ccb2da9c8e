package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thrr87/hoard/internal/syncpipeline"
)

// SyncOptions holds flags for the sync command group.
type SyncOptions struct {
	*RootOptions
}

// NewSyncCommand creates the sync command group: a thin CLI entry point
// onto the Sync Singleton File Lock, letting an external connector be
// driven by hand or from a cron job without its own binary.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "run an external connector sync against this database",
	}
	cmd.AddCommand(newSyncRunCommand(opts))
	return cmd
}

func newSyncRunCommand(opts *SyncOptions) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "pull newline-delimited JSON records and write them as memories",
		Long:  "run reads one JSON record per line (from --input, or stdin when omitted) and writes each as a memory through the write coordinator, guarded by the Sync Singleton File Lock so two concurrent runs never race. A run that finds the lock already held is a no-op, not an error.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd, inputPath)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a newline-delimited JSON file (default: stdin)")
	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command, inputPath string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	oneShot, err := openOneShotEnv(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer oneShot.Close()

	in := cmd.InOrStdin()
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		in = f
	}

	pipeline := syncpipeline.New(oneShot.coord, cfg.Database.Path)
	conn := syncpipeline.NewJSONLinesConnector(in)

	n, err := pipeline.Run(ctx, conn)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if err != nil {
		_ = formatter.Error("E_SYNC", err.Error(), nil)
		return WrapExitError(ExitFailure, "sync run failed", err)
	}
	if n == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "sync: no records written (lock held elsewhere, or input empty)")
	}
	return formatter.Success(map[string]any{"records_written": n})
}
