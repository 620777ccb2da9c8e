package app

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thrr87/hoard/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "hoard.db")
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Worker.LeaseTTLMS = 60
	return cfg
}

func TestNew_AcquiresSingletonLockAndRejectsSecond(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, "holder-1")
	require.NoError(t, err)
	defer a.Close()

	_, err = New(ctx, cfg, "holder-2")
	require.Error(t, err)
}

func TestClose_ReleasesLockForNextOpen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, "holder-1")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	a2, err := New(ctx, cfg, "holder-2")
	require.NoError(t, err)
	require.NoError(t, a2.Close())
}

func TestRun_ServesRPCUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.ListenAddr = "127.0.0.1:18421"
	ctx, cancel := context.WithCancel(context.Background())

	a, err := New(ctx, cfg, "holder-1")
	require.NoError(t, err)
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Post("http://"+cfg.Server.ListenAddr+"/rpc", "application/json",
			strings.NewReader(`{"jsonrpc":"2.0","method":"memory_get","params":{"id":"missing"},"id":1}`))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
