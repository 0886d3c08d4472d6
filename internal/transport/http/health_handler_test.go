package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/services"
	"dataflow/internal/shared/testutil"
	"dataflow/pkg/contracts"
)

type stubCounter int

func (c stubCounter) Len() int          { return int(c) }
func (c stubCounter) SessionCount() int { return int(c) }

func TestHealthRoutes(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewHealthHandler(services.NewHealthService(stubCounter(3), stubCounter(1), "http://127.0.0.1:5000", logger), logger)
	router := handler.Routes()

	tests := []struct {
		path       string
		wantStatus int
		wantField  string
		wantValue  interface{}
	}{
		{"/health", http.StatusOK, "status", "ok"},
		{"/health/ready", http.StatusOK, "status", "ready"},
		{"/health/live", http.StatusOK, "status", "alive"},
		{"/version", http.StatusOK, "version", contracts.Version},
		{"/stats", http.StatusOK, "sessions", float64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			decode(t, rec, &body)
			assert.Equal(t, tt.wantValue, body[tt.wantField])
		})
	}
}

func TestReadinessWithoutEngine(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewHealthHandler(services.NewHealthService(stubCounter(0), nil, "", logger), logger)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "not_ready", body["status"])
}
