package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"dataflow/internal/config"
	"dataflow/internal/engine"
	apperrors "dataflow/internal/errors"
	"dataflow/internal/middleware"
	"dataflow/internal/services"
	"dataflow/internal/shared/testutil"
	"dataflow/internal/workbench"
	"dataflow/pkg/contracts/domain"
)

const testUploadLimit = 1 << 20

type testServer struct {
	engine   *testutil.EngineServer
	sessions *services.SessionRegistry
	router   http.Handler
	logs     *testutil.BufferedSlogHandler
}

type serverOption func(*workbench.Options)

func newTestServer(t *testing.T, stream http.Handler, opts ...serverOption) *testServer {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	eng := testutil.NewEngineServer(t)

	cfg := config.Default()
	cfg.Engine.BaseURL = eng.URL
	client := engine.NewClient(cfg.Engine, logger)

	registry := services.NewSessionRegistry(cfg.Session, func(id string) *workbench.Workbench {
		o := workbench.Options{MaxUploadBytes: testUploadLimit, Logger: logger}
		for _, opt := range opts {
			opt(&o)
		}
		return workbench.New(id, client, o)
	}, logger, nil)

	pages, err := NewPages()
	require.NoError(t, err)

	handler := NewSessionHandler(
		registry,
		pages,
		middleware.NewValidator(logger),
		apperrors.NewErrorHandler(logger, false),
		testUploadLimit,
		stream,
		logger,
	)
	return &testServer{engine: eng, sessions: registry, router: handler.Routes(), logs: logs}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.do(t, req)
}

func (s *testServer) upload(t *testing.T, path, field string, files ...domain.Upload) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.Name)
		require.NoError(t, err)
		_, err = part.Write(f.Data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req)
}

// session creates a session and returns its url prefix
func (s *testServer) session(t *testing.T) (string, *workbench.Workbench) {
	t.Helper()
	rec := s.request(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
		URL       string `json:"url"`
	}
	decode(t, rec, &resp)
	wb, err := s.sessions.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	return resp.URL, wb
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type problem struct {
	Status int    `json:"status"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) problem {
	t.Helper()
	var p problem
	decode(t, rec, &p)
	return p
}

func csvFile() domain.Upload {
	return domain.Upload{Name: "sales.csv", Data: []byte("colX,colY\n1,2\n3,4\n")}
}

func pdfFile(name string) domain.Upload {
	return domain.Upload{Name: name, Data: []byte("%PDF-1.4 " + name)}
}
