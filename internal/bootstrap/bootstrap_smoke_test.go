package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformconfig "prediction-relay/internal/platform/config"
	platformtesting "prediction-relay/internal/platform/testing"
)

var envKeys = []string{
	"PREDICTION_ENDPOINT",
	"PREDICTION_KEY",
	"PREDICTION_TIMEOUT",
	"PREDICTION_MAX_BODY_BYTES",
	"FUNCTIONS_CUSTOMHANDLER_PORT",
	"SERVER_PORT",
	"SERVER_IP",
	"SERVER_SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_DIR",
	"LOG_FILE",
	"WEB_STATIC_DIR",
	"WEB_ALLOW_ORIGINS",
	"EVENTS_WORKERS",
	"EVENTS_QUEUE_SIZE",
	"RELAY_CONFIG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func newTestApp(t *testing.T, yaml string) (*Application, *platformtesting.SafeBuffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	console := &platformtesting.SafeBuffer{}
	app, err := New(context.Background(), Options{
		Loader:  platformconfig.NewLoader().WithDotEnv(false).WithFile(path),
		Console: console,
	})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })
	return app, console
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"observability:setup-hooks",
		"eventbus:init",
		"prediction:init-relay",
	}
	require.Len(t, steps, len(want))
	for i, step := range steps {
		assert.Equal(t, want[i], step.ID, "step %d", i)
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
	assert.Contains(t, err.Error(), "dependency a not satisfied")
}

func TestNew_ServesPredictAndHealth(t *testing.T) {
	clearEnv(t)
	upstream := platformtesting.NewFakeUpstream(t, http.StatusOK,
		`{"predictions":[{"tagName":"Stop","probability":0.97}]}`)
	t.Setenv("PREDICTION_ENDPOINT", upstream.URL())
	t.Setenv("PREDICTION_KEY", "env-key")

	app, console := newTestApp(t, "log:\n  log_level: debug\n")

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("png-bytes")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sign":"Stop","confidence":0.97}`, rec.Body.String())
	assert.Equal(t, 1, upstream.Calls())
	assert.Equal(t, "env-key", upstream.LastHeader("Prediction-Key"))
	assert.Equal(t, []byte("png-bytes"), upstream.LastBody())

	app.state.bus.Flush()

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Data struct {
			Configured bool `json:"configured"`
			Stats      struct {
				Completed uint64 `json:"completed"`
			} `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.Data.Configured)
	assert.Equal(t, uint64(1), health.Data.Stats.Completed)

	assert.Contains(t, console.String(), "[预测]")
	assert.NotContains(t, rec.Body.String(), "env-key")
}

func TestNew_UnconfiguredStillServes(t *testing.T) {
	clearEnv(t)
	app, _ := newTestApp(t, "server:\n  port: 9000\n")

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("img")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t,
		"ERROR: Application is not configured. PREDICTION_ENDPOINT or PREDICTION_KEY is missing.",
		rec.Body.String())
}

func TestNew_OpenAPIAndDocs(t *testing.T) {
	clearEnv(t)
	app, _ := newTestApp(t, "")

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/predict")

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/openapi.json")
}

func TestListenAddr_CustomHandlerPortWins(t *testing.T) {
	server := platformconfig.ServerConfig{IP: "0.0.0.0", Port: 8080, CustomHandlerPort: 7071}
	assert.Equal(t, "0.0.0.0:7071", listenAddr(server))

	server.CustomHandlerPort = 0
	assert.Equal(t, "0.0.0.0:8080", listenAddr(server))
}
