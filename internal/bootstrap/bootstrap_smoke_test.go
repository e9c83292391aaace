package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformerrors "github.com/arluqh/pregnancy-food-checker/internal/platform/errors"
	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

func noEnv(string) (string, bool) { return "", false }

func writeConfig(t *testing.T, port int, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`server:
  ip: 127.0.0.1
  port: %d
  shutdown_timeout: 2s
log:
  log_level: info
  log_dir: %s
  log_file: smoke.log
web:
  docs: true
%s`, port, filepath.Join(dir, "logs"), extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"events:init-bus",
		"ratelimit:init-limiter",
		"image:init-validator",
		"inference:init-provider",
	}
	require.Len(t, steps, len(want))
	for i, step := range steps {
		assert.Equal(t, want[i], step.ID)
	}
}

func TestExecuteInitSteps_MissingDependency(t *testing.T) {
	steps := []initStep{{
		ID:        "b",
		DependsOn: []string{"a"},
		Execute:   func(context.Context, *appState) error { return nil },
	}}

	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindBootstrap))
}

func TestExecuteInitSteps_WrapsStepKind(t *testing.T) {
	steps := []initStep{{
		ID:      "x",
		Kind:    platformerrors.KindStorage,
		Execute: func(context.Context, *appState) error { return io.ErrUnexpectedEOF },
	}}

	err := executeInitSteps(context.Background(), steps, &appState{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindStorage))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestExecuteInitGraph(t *testing.T) {
	state := &appState{options: Options{ConfigPath: writeConfig(t, 8080, ""), LookupEnv: noEnv}}
	require.NoError(t, executeInitSteps(context.Background(), InitGraph(), state))
	t.Cleanup(state.close)

	assert.NotNil(t, state.config)
	assert.NotNil(t, state.logger)
	assert.NotNil(t, state.metrics)
	assert.NotNil(t, state.bus)
	assert.NotNil(t, state.limiter)
	assert.NotNil(t, state.validator)
	require.NotNil(t, state.provider)
	assert.False(t, state.provider.Configured())

	router, err := buildRouter(context.Background(), state)
	require.NoError(t, err)

	for _, path := range []string{"/api/health", "/api/foods/avoid", "/openapi.json", "/docs", "/metrics"} {
		rec := httptest.NewRecorder()
		router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"image":"data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "credential not configured")
}

func TestExecuteInitGraph_RejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, 8080, "rate_limit:\n  driver: etcd\n")
	state := &appState{options: Options{ConfigPath: path, LookupEnv: noEnv}}
	err := executeInitSteps(context.Background(), InitGraph(), state)
	t.Cleanup(state.close)

	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	tmp := t.TempDir()
	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: "info",
		LogDir:   tmp,
		LogFile:  "graph.log",
		Console:  io.Discard,
	})
	require.NoError(t, err)
	logBootstrapGraph(InitGraph(), logger)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(tmp, "graph.log"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "initialisation graph")
	for _, step := range InitGraph() {
		assert.Contains(t, content, step.ID)
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{ConfigPath: writeConfig(t, port, ""), LookupEnv: noEnv})
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
