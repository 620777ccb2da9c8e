package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/thrr87/hoard/internal/dispatch"
)

// TaskOptions holds flags shared by the task subcommands.
type TaskOptions struct {
	*RootOptions
}

// NewTaskCommand creates the task command group: create, claim, finish, get.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TaskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "task",
		Short: "create and claim coordination tasks",
	}
	cmd.AddCommand(newTaskCreateCommand(opts))
	cmd.AddCommand(newTaskClaimCommand(opts))
	cmd.AddCommand(newTaskFinishCommand(opts))
	cmd.AddCommand(newTaskGetCommand(opts))
	return cmd
}

func newTaskCreateCommand(opts *TaskOptions) *cobra.Command {
	var kind, payload string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "enqueue a new pending task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "task_create", map[string]any{"kind": kind, "payload": payload})
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "task kind (required)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON payload")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newTaskClaimCommand(opts *TaskOptions) *cobra.Command {
	var taskID, kind, claimant string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "claim a task by id, or the oldest pending task of a kind",
		Long:  "claim transitions one pending task to claimed. Pass --task-id to claim a specific, already-known task (the losing side of a race reports {\"claimed\": false} rather than failing); otherwise --kind claims the oldest pending task of that kind.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" && kind == "" {
				return NewExitError(ExitCommandError, "one of --task-id or --kind is required")
			}
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "task_claim", map[string]any{
					"task_id": taskID, "kind": kind, "claimant": claimant,
				})
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "claim this specific task id")
	cmd.Flags().StringVar(&kind, "kind", "", "task kind (used when --task-id is absent)")
	cmd.Flags().StringVar(&claimant, "claimant", "", "claiming agent id (required)")
	_ = cmd.MarkFlagRequired("claimant")
	return cmd
}

func newTaskFinishCommand(opts *TaskOptions) *cobra.Command {
	var version int
	var failed bool
	cmd := &cobra.Command{
		Use:   "finish <id>",
		Short: "mark a claimed task done or failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "task_finish", map[string]any{
					"id": args[0], "version": version, "failed": failed,
				})
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "expected current version (required)")
	cmd.Flags().BoolVar(&failed, "failed", false, "mark the task failed instead of done")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func newTaskGetCommand(opts *TaskOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "fetch a task by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(opts.RootOptions, cmd, func(ctx context.Context, env *dispatch.Env) (any, error) {
				return dispatch.Dispatch(ctx, env, "task_get", map[string]any{"id": args[0]})
			})
		},
	}
	return cmd
}
