package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/httpretry/config"
	"github.com/gaborage/httpretry/logger"
	"github.com/gaborage/httpretry/server"
)

const quietConfig = `
log:
  level: error
retry:
  count: 2
  delayms: 1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retryctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func newUpstream(t *testing.T, script string) (*server.Server, *httptest.Server) {
	t.Helper()
	srv, err := server.New(config.ServerConfig{Script: script}, logger.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "retryctl version test", lines[0])
	assert.Equal(t, "Built with "+runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH, lines[1])
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	srv, ts := newUpstream(t, "503,502,200")
	cfg := writeConfig(t, quietConfig)

	out, errOut, err := execute(t, "send", ts.URL+server.ScriptRoute, "--config", cfg)
	require.NoError(t, err)

	assert.Contains(t, out, `"hit":3`)
	assert.Contains(t, errOut, "status: 200 OK")
	assert.Contains(t, errOut, "attempts: 3 (retries: 2,")
	assert.Equal(t, 3, srv.Stats().Total)
}

func TestSendAliasAndOverrides(t *testing.T) {
	srv, ts := newUpstream(t, "500")
	cfg := writeConfig(t, quietConfig)

	_, errOut, err := execute(t, "get", ts.URL+server.ScriptRoute, "--config", cfg, "--retries", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, errOut, "status: 500 Internal Server Error")
	assert.Contains(t, errOut, "attempts: 1 (retries: 0,")
	assert.Equal(t, 1, srv.Stats().Total)
}

func TestSendDoesNotRetryRateLimitWithoutRetryAfter(t *testing.T) {
	srv, ts := newUpstream(t, "429,200")
	cfg := writeConfig(t, quietConfig)

	_, errOut, err := execute(t, "send", ts.URL+server.ScriptRoute, "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, errOut, "status: 429 Too Many Requests")
	assert.Equal(t, 1, srv.Stats().Total)
}

func TestSendMethodBodyAndHeaders(t *testing.T) {
	var (
		mu        sync.Mutex
		gotMethod string
		gotBody   string
		gotHeader string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		mu.Lock()
		defer mu.Unlock()
		gotMethod = r.Method
		gotBody = buf.String()
		gotHeader = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(ts.Close)
	cfg := writeConfig(t, quietConfig)

	_, errOut, err := execute(t, "send", ts.URL, "--config", cfg,
		"-X", "post", "-d", `{"a":1}`, "-H", "X-Custom: yes")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "yes", gotHeader)
	assert.Contains(t, errOut, "status: 201 Created")
}

func TestSendUsesConfiguredBaseURL(t *testing.T) {
	srv, ts := newUpstream(t, "200")
	cfg := writeConfig(t, quietConfig+"http:\n  baseurl: "+ts.URL+"\n")

	out, _, err := execute(t, "send", server.ScriptRoute, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `"hit":1`)
	assert.Equal(t, 1, srv.Stats().Total)
}

func TestSendRejectsInvalidInput(t *testing.T) {
	cfg := writeConfig(t, quietConfig)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing url", args: []string{"send", "--config", cfg}, want: "accepts 1 arg"},
		{name: "bad header", args: []string{"send", "http://127.0.0.1:1", "--config", cfg, "-H", "nocolon"}, want: "invalid header"},
		{name: "negative retries", args: []string{"send", "http://127.0.0.1:1", "--config", cfg, "--retries", "-1"}, want: "retry settings"},
		{name: "missing config file", args: []string{"send", "http://127.0.0.1:1", "--config", filepath.Join(t.TempDir(), "nope.yaml")}, want: "failed to load"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"Accept: application/json", "X-Empty:", " X-Trim :  v "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Accept":  "application/json",
		"X-Empty": "",
		"X-Trim":  "v",
	}, headers)

	headers, err = parseHeaders(nil)
	require.NoError(t, err)
	assert.Nil(t, headers)

	_, err = parseHeaders([]string{": value"})
	require.Error(t, err)
}

func TestScheduleIsReproducibleWithSeed(t *testing.T) {
	cfg := writeConfig(t, quietConfig)
	args := []string{"schedule", "--config", cfg, "--retries", "5", "--delay", "1s", "--seed", "42"}

	first, _, err := execute(t, args...)
	require.NoError(t, err)
	second, _, err := execute(t, args...)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	lines := strings.Split(strings.TrimSpace(first), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "retry 1: "))
	assert.True(t, strings.HasPrefix(lines[4], "retry 5: "))
}

func TestScheduleUsesConfigDefaults(t *testing.T) {
	cfg := writeConfig(t, quietConfig)

	out, _, err := execute(t, "schedule", "--config", cfg)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestScheduleEdgeCases(t *testing.T) {
	cfg := writeConfig(t, quietConfig)

	out, _, err := execute(t, "schedule", "--config", cfg, "--retries", "0")
	require.NoError(t, err)
	assert.Equal(t, "no retries\n", out)

	_, _, err = execute(t, "schedule", "--config", cfg, "--delay", "-1s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry settings")
}

func TestServeRejectsInvalidScript(t *testing.T) {
	cfg := writeConfig(t, quietConfig)

	_, _, err := execute(t, "serve", "--config", cfg, "--script", "503,abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid script")
}
