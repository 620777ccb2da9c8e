package cli

import (
	"context"

	"github.com/thrr87/hoard/internal/config"
	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/dispatch"
	"github.com/thrr87/hoard/internal/store"
)

// oneShotEnv opens the store directly (no Server Singleton Lock, no RPC
// listener) and runs a coordinator goroutine just long enough to service
// the single command invoking it. Admin commands use this instead of
// internal/app.App because they are short-lived and expected to run
// alongside (not instead of) a `hoard serve` process against the same
// database; the coordinator still gives them the same optimistic-guard
// semantics as any other writer.
type oneShotEnv struct {
	store *store.Store
	coord *coordinator.Coordinator
	env   *dispatch.Env
	stop  context.CancelFunc
	done  chan struct{}
}

func openOneShotEnv(ctx context.Context, cfg *config.Config) (*oneShotEnv, error) {
	s, err := store.Open(cfg.Database.Path, cfg.Database.BusyTimeoutMS, cfg.Database.ReaderPoolSize, cfg.Database.LockTimeoutMS)
	if err != nil {
		return nil, err
	}

	coordCtx, cancel := context.WithCancel(ctx)
	coord := coordinator.New(s)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coord.Run(coordCtx)
	}()

	env := &dispatch.Env{Reader: s.Reader(), Sub: coord, Config: cfg}
	return &oneShotEnv{store: s, coord: coord, env: env, stop: cancel, done: done}, nil
}

func (e *oneShotEnv) Close() error {
	e.stop()
	<-e.done
	return e.store.Close()
}
