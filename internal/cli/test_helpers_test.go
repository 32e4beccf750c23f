package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/llmredi/internal/config"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// parseOnly parses args without running the matched command.
func parseOnly(args ...string) (*GlobalFlags, *commands, error) {
	parser, globals, cmds := buildParser("test")
	parser.Options &^= goflags.PrintErrors
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}

type testEnv struct {
	*env
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	mem    *storage.MemoryStore
}

// newTestEnv builds an env against a fake backend with fast polling and
// in-memory storage.
func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newTestEnvAt(t, srv.URL)
}

func newTestEnvAt(t *testing.T, baseURL string) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.Polling.JobInterval = 10 * time.Millisecond
	cfg.Polling.OptimizeInterval = 10 * time.Millisecond
	cfg.Polling.WaitTimeout = 5 * time.Second

	var stdout, stderr bytes.Buffer
	mem := storage.NewMemoryStore()
	e := newEnv(cfg, nil, mem, envOptions{Out: &stdout, ErrOut: &stderr})
	t.Cleanup(e.Close)
	return &testEnv{env: e, stdout: &stdout, stderr: &stderr, mem: mem}
}

// seedSession stores a logged-in session as a previous run would have.
func (te *testEnv) seedSession(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, storage.SetJSON(ctx, te.mem, storage.KeyUser, domain.User{ID: "1", Email: "a@b.com", Name: "A", Company: "Acme"}))
	require.NoError(t, te.mem.Set(ctx, storage.KeyToken, "t1"))
}

func (te *testEnv) stored(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := te.mem.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}
