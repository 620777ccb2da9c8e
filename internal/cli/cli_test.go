package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRootCmd(t *testing.T, args ...string) (*bytes.Buffer, []string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "hoard.db")
	full := append([]string{"--db", dbPath, "--format", "json"}, args...)
	return &bytes.Buffer{}, full
}

func runCLI(t *testing.T, args []string, out *bytes.Buffer) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMemoryPutReportsOK(t *testing.T) {
	out, baseArgs := newTestRootCmd(t)
	err := runCLI(t, append(append([]string{}, baseArgs...), "memory", "put",
		"--scope", "s", "--slot", "slot", "--owner", "a", "--content", "hello"), out)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"status":"ok"`)
}

func TestTaskCreateThenClaim(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hoard.db")

	out := &bytes.Buffer{}
	err := runCLI(t, []string{"--db", dbPath, "--format", "json", "task", "create", "--kind", "ingest"}, out)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"status":"ok"`)

	out.Reset()
	err = runCLI(t, []string{"--db", dbPath, "--format", "json", "task", "claim", "--kind", "ingest", "--claimant", "w1"}, out)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"status":"ok"`)
}

func TestDoctorReportsOK(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hoard.db")
	out := &bytes.Buffer{}
	err := runCLI(t, []string{"--db", dbPath, "--format", "json", "doctor"}, out)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"status":"ok"`)
}

func TestConflictsListEmptyScope(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hoard.db")
	out := &bytes.Buffer{}
	err := runCLI(t, []string{"--db", dbPath, "--format", "json", "conflicts", "list", "--scope", "s"}, out)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"status":"ok"`)
}
