package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thrr87/hoard/internal/config"
	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/dispatch"
	"github.com/thrr87/hoard/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "hoard.db"), 5000, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := coordinator.New(s)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)

	env := &dispatch.Env{Reader: s.Reader(), Sub: c, Config: config.Defaults()}
	return NewServer(env)
}

func doRPC(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleRPC_UnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	rec := doRPC(t, srv, `{"jsonrpc":"2.0","method":"no_such_tool","id":1}`)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestHandleRPC_MemoryPutRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	rec := doRPC(t, srv, `{"jsonrpc":"2.0","method":"memory_put","params":{"scope":"s","slot":"slot","owner_agent":"a","content":"hi"},"id":1}`)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestHandleRPC_Batch(t *testing.T) {
	srv := newTestServer(t)
	body := `[
		{"jsonrpc":"2.0","method":"memory_put","params":{"scope":"s","slot":"a","owner_agent":"x","content":"1"},"id":1},
		{"jsonrpc":"2.0","method":"memory_put","params":{"scope":"s","slot":"b","owner_agent":"x","content":"2"},"id":2}
	]`
	rec := doRPC(t, srv, body)

	var resps []Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resps))
	require.Len(t, resps, 2)
	for _, r := range resps {
		require.Nil(t, r.Error)
	}
}

func TestHandleRPC_InvalidBearerTokenRejected(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(`{"jsonrpc":"2.0","method":"memory_get","params":{"id":"x"},"id":1}`))
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
