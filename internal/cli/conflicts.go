package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/thrr87/hoard/internal/dispatch"
)

// ConflictsOptions holds flags shared by the conflicts subcommands.
type ConflictsOptions struct {
	*RootOptions
}

// NewConflictsCommand creates the conflicts command group: list and
// resolve conflicts, and list and resolve duplicates.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConflictsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "inspect and resolve competing-write conflicts and near-duplicates",
	}
	cmd.AddCommand(newConflictsListCommand(opts))
	cmd.AddCommand(newConflictsResolveCommand(opts))
	cmd.AddCommand(newDuplicatesListCommand(opts))
	cmd.AddCommand(newDuplicatesResolveCommand(opts))
	return cmd
}

func newConflictsListCommand(opts *ConflictsOptions) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list open conflicts in a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "conflict_list", map[string]any{"scope": scope})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope to list (required)")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func newConflictsResolveCommand(opts *ConflictsOptions) *cobra.Command {
	var resolvedBy, winnerID string
	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "resolve a conflict by picking the surviving memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "conflict_resolve", map[string]any{
					"conflict_id": args[0], "resolved_by": resolvedBy, "winner_id": winnerID,
				})
			})
		},
	}
	cmd.Flags().StringVar(&resolvedBy, "resolved-by", "", "agent id resolving the conflict (required)")
	cmd.Flags().StringVar(&winnerID, "winner", "", "id of the memory that survives (required)")
	_ = cmd.MarkFlagRequired("resolved-by")
	_ = cmd.MarkFlagRequired("winner")
	return cmd
}

func newDuplicatesListCommand(opts *ConflictsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "list open duplicate pairings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "duplicate_list", nil)
			})
		},
	}
	return cmd
}

func newDuplicatesResolveCommand(opts *ConflictsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ack-duplicate <id>",
		Short: "acknowledge a duplicate pairing without retracting either side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "duplicate_resolve", map[string]any{"id": args[0]})
			})
		},
	}
	return cmd
}
