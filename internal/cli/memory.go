package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/thrr87/hoard/internal/dispatch"
)

// MemoryOptions holds flags shared by the memory subcommands.
type MemoryOptions struct {
	*RootOptions
}

// NewMemoryCommand creates the memory command group: put, get, list,
// retract, over the same internal/dispatch registry the RPC
// transport uses, so CLI behavior never drifts from what an agent sees.
func NewMemoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MemoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "inspect and edit memories",
	}
	cmd.AddCommand(newMemoryPutCommand(opts))
	cmd.AddCommand(newMemoryGetCommand(opts))
	cmd.AddCommand(newMemoryListCommand(opts))
	cmd.AddCommand(newMemoryRetractCommand(opts))
	return cmd
}

func newMemoryPutCommand(opts *MemoryOptions) *cobra.Command {
	var scope, slot, owner, content string

	cmd := &cobra.Command{
		Use:   "put",
		Short: "write a new memory into a scope/slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "memory_put", map[string]any{
					"scope": scope, "slot": slot, "owner_agent": owner, "content": content,
				})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "memory scope (required)")
	cmd.Flags().StringVar(&slot, "slot", "", "memory slot within scope (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "owning agent id (required)")
	cmd.Flags().StringVar(&content, "content", "", "memory content (required)")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("slot")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newMemoryGetCommand(opts *MemoryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "fetch a memory by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "memory_get", map[string]any{"id": args[0]})
			})
		},
	}
	return cmd
}

func newMemoryListCommand(opts *MemoryOptions) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list live memories in a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "memory_list_scope", map[string]any{"scope": scope})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope to list (required)")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func newMemoryRetractCommand(opts *MemoryOptions) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "retract <id>",
		Short: "retract a live memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "memory_retract", map[string]any{"id": args[0], "version": version})
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "expected current version (required)")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

// withDispatch opens a short-lived store+coordinator, runs fn, and prints
// its result through an OutputFormatter per opts.Format. Every memory/task/
// conflicts subcommand is a thin wrapper around one dispatch.Dispatch call.
func withDispatch(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, env *dispatch.Env) (any, error)) error {
	cfg, err := loadConfig(opts)
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

	result, err := fn(ctx, oneShot.env)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if err != nil {
		_ = formatter.Error("E_DISPATCH", err.Error(), nil)
		return WrapExitError(ExitFailure, "command failed", err)
	}
	return formatter.Success(result)
}
