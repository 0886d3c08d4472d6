package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/config"
	"dataflow/internal/engine"
	"dataflow/internal/shared/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	eng := testutil.NewEngineServer(t)
	eng.RespondJSON(engine.PathAnalyze, http.StatusOK, testutil.AnalysisPayload())

	cfg := config.Default()
	cfg.Engine.BaseURL = eng.URL
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Telemetry.EnableMetrics = false
	cfg.Telemetry.EnableTracing = false
	return cfg
}

func newTestApp(t *testing.T) (*Application, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	app, err := NewApplication(testConfig(t), logger)
	require.NoError(t, err)
	return app, logs
}

func serve(t *testing.T, app *Application, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	rec := serve(t, app, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(t, app, http.MethodPost, "/api/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var session struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, 1, app.Sessions.Len())

	rec = serve(t, app, http.MethodGet, session.URL+"/state", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, app, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, 2, app.Sessions.Len())

	rec = serve(t, app, http.MethodGet, "/api/version", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotFoundIsProblem(t *testing.T) {
	app, _ := newTestApp(t)

	rec := serve(t, app, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/not-found", problem["type"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), problem["trace_id"])
}

func TestClientLogsRequireJSON(t *testing.T) {
	app, logs := newTestApp(t)

	rec := serve(t, app, http.MethodPost, "/api/logs", "text/plain", "hello")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, app, http.MethodPost, "/api/logs", "application/json", `{"level":"warn","message":"slow chart"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "slow chart")
}

func TestManualAnalysisThroughRouter(t *testing.T) {
	app, logs := newTestApp(t)

	wb := app.Sessions.Create(context.Background())
	base := "/s/" + wb.ID()

	rec := serve(t, app, http.MethodPatch, base+"/rows/0", "application/json", `{"field":"name","value":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = serve(t, app, http.MethodPatch, base+"/rows/0", "application/json", `{"field":"value1","value":"1.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, app, http.MethodPost, base+"/analyze?mode=manual", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, wb.Snapshot().HasResult())

	// Notifications reach the log sink
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "Analysis completed successfully")
	testutil.AssertLogAttr(t, logs, "component", "notify")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	app, _ := newTestApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Serve(ctx, ln)
	}()

	url := "http://" + ln.Addr().String() + "/api/health/live"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	_, err = http.Get(url)
	assert.Error(t, err, "server is closed")
}
