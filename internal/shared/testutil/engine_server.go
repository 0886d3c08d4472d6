package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RecordedRequest is one request observed by EngineServer
type RecordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
	// Files maps multipart field names to the file names sent in them
	Files map[string][]string
}

// JSON decodes the recorded body into v
func (r RecordedRequest) JSON(t *testing.T, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("request body is not JSON: %v: %s", err, r.Body)
	}
}

// EngineServer is a scripted fake of the remote analysis engine. Every
// request is recorded before the registered handler runs.
type EngineServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewEngineServer starts a fake engine that is closed when the test ends
func NewEngineServer(t *testing.T) *EngineServer {
	t.Helper()
	s := &EngineServer{handlers: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *EngineServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	rec := RecordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
		Files:       multipartFiles(r.Header.Get("Content-Type"), body),
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	h, ok := s.handlers[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func multipartFiles(contentType string, body []byte) map[string][]string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil
	}
	files := make(map[string][]string)
	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		if part.FileName() != "" {
			files[part.FormName()] = append(files[part.FormName()], part.FileName())
		}
		part.Close()
	}
	return files
}

// Handle registers a handler for path
func (s *EngineServer) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// RespondJSON makes path answer with status and the JSON encoding of body
func (s *EngineServer) RespondJSON(path string, status int, body interface{}) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
}

// RespondRaw makes path answer with a raw body
func (s *EngineServer) RespondRaw(path string, status int, contentType string, body []byte) {
	s.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write(body)
	})
}

// Requests returns every recorded request in arrival order
func (s *EngineServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Count returns how many requests hit path; an empty path counts all
func (s *EngineServer) Count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == "" {
		return len(s.requests)
	}
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request to path
func (s *EngineServer) Last(t *testing.T, path string) RecordedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i]
		}
	}
	t.Fatalf("no request recorded for %s", path)
	return RecordedRequest{}
}

// AnalysisPayload is a canned successful analysis response
func AnalysisPayload() map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"columns": []string{"colX", "colY"},
		"stats": map[string]interface{}{
			"colX": map[string]interface{}{"count": 10, "mean": 3.14159, "std": 1.0, "min": 0, "max": 5},
			"colY": map[string]interface{}{"count": 10, "mean": 2, "std": 0.5, "min": 1, "max": 3},
		},
		"correlation": map[string]interface{}{
			"colX": map[string]interface{}{"colX": 1, "colY": 0.5},
			"colY": map[string]interface{}{"colX": 0.5, "colY": 1},
		},
		"charts": map[string]interface{}{
			"bar":     "data:image/png;base64,iVBORw0KGgo=",
			"scatter": "data:image/png;base64,iVBORw0KGgo=",
		},
		"shape": []int{10, 2},
	}
}
