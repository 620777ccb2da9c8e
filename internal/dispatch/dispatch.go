// Package dispatch implements the Transactional Dispatch layer: a static
// registry classifying every tool name as a read or write tool, and the
// Dispatch entry point that runs read tools immediately against a reader
// handle while wrapping write tools into a coordinator.TxFunc submitted to
// the Write Coordinator.
//
// Grounded on nysm's internal/cli/root.go subcommand registration — each
// tool file registers itself next to its handler instead of one central
// switch statement, the same way NewRootCommand composes one
// NewXCommand per verb.
package dispatch

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thrr87/hoard/internal/config"
	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/store"
)

// ToolKind classifies a tool as read-only or mutating.
type ToolKind int

const (
	ToolRead ToolKind = iota
	ToolWrite
)

// Handler implements one tool. q is either the reader pool (read tools) or
// the Write Coordinator's transaction (write tools) — both satisfy
// store.Queryer, so handler bodies don't need to know which.
type Handler func(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error)

// Env is the capability set every handler gets: a reader handle, a
// back-reference to the coordinator for handlers that need to enqueue
// follow-on jobs, and the resolved configuration. It is not *hoard.App —
// handlers depend on this narrower capability set, not the whole process.
type Env struct {
	Reader *sql.DB
	Sub    coordinator.Submitter
	Config *config.Config
}

var registry = map[string]ToolKind{}
var handlers = map[string]Handler{}

// register is called once per tool file's init(), colocating a tool's
// classification with the handler that implements it.
func register(name string, kind ToolKind, h Handler) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("dispatch: tool %q registered twice", name))
	}
	registry[name] = kind
	handlers[name] = h
}

// Kind reports a tool's classification. The second return is false for an
// unregistered name.
func Kind(name string) (ToolKind, bool) {
	k, ok := registry[name]
	return k, ok
}

// Names returns every registered tool name, for the RPC transport's
// introspection and the CLI's help text.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Dispatch routes one tool invocation to its handler. Read tools run
// immediately against env.Reader. Write tools are wrapped into a
// coordinator.TxFunc and submitted, so the call blocks until the Write
// Coordinator has committed (or rolled back) the handler's transaction.
func Dispatch(ctx context.Context, env *Env, name string, params map[string]any) (any, error) {
	kind, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", hoarderr.ErrNotFound, name)
	}
	h := handlers[name]

	if kind == ToolRead {
		return h(ctx, env.Reader, env, params)
	}

	return env.Sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return h(ctx, tx, env, params)
	})
}
