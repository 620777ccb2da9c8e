package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/thrr87/hoard/internal/app"
	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/log"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ListenAddr string
}

// NewServeCommand creates the serve command: acquires the Server Singleton
// Lock, opens the store, and runs the write coordinator, background
// worker, and JSON-RPC server until interrupted.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the hoard server against a database",
		Long:  "serve starts the write coordinator, background worker, and JSON-RPC transport for a single database. Only one serve process may hold a given database at a time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.ListenAddr, "listen", "", "address to listen on (overrides config)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.ListenAddr != "" {
		cfg.Server.ListenAddr = opts.ListenAddr
	}

	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level, JSON: opts.Format == "json"})

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	a, err := app.New(ctx, cfg, uuid.NewString())
	if err != nil {
		if errors.Is(err, hoarderr.ErrSingletonConflict) {
			return NewExitError(ExitCommandError, "Another hoard server is already running on this database.")
		}
		return WrapExitError(ExitCommandError, "failed to start hoard", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.Logger.Error().Err(closeErr).Msg("error closing app")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "hoard listening on %s (db: %s)\n", cfg.Server.ListenAddr, cfg.Database.Path)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	log.Logger.Info().Msg("hoard stopped gracefully")
	return nil
}
