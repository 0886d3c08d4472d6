// Package engine is the HTTP client of the remote analysis and conversion
// engine. It maps every outcome onto the workbench error kinds: the engine's
// own failure envelope becomes ServerRejected, everything that prevents a
// readable answer becomes TransportError.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"dataflow/internal/config"
	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	"dataflow/pkg/contracts/domain"
)

// Engine endpoints
const (
	PathAnalyze = "/api/analyze"
	PathSmooth  = "/api/smooth"
)

const maxResponseBytes = 256 << 20

// Client talks to the remote engine
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
	metrics    *infrastructure.WorkbenchMetrics
	logger     *slog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records engine round trips on metrics
func WithMetrics(metrics *infrastructure.WorkbenchMetrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithTracer sets the tracer used for client spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// NewClient creates a new engine client
func NewClient(cfg config.EngineConfig, logger *slog.Logger, opts ...Option) *Client {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
		tracer:  otel.Tracer(infrastructure.MeterName),
		logger:  logger.With(slog.String("component", "engine_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the engine address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AnalyzeFile uploads a file for analysis
func (c *Client) AnalyzeFile(ctx context.Context, file domain.Upload) (*domain.AnalysisResult, error) {
	body, contentType, err := encodeMultipart([]formFile{{field: "file", upload: file}})
	if err != nil {
		return nil, apperrors.Transport("Failed to encode upload", err)
	}
	resp, err := c.post(ctx, PathAnalyze, contentType, body)
	if err != nil {
		return nil, err
	}
	return decodeAnalysis(resp)
}

// AnalyzeRows submits manual rows for analysis
func (c *Client) AnalyzeRows(ctx context.Context, rows []domain.Row) (*domain.AnalysisResult, error) {
	payload, err := json.Marshal(domain.AnalyzeRowsRequest{Data: rows})
	if err != nil {
		return nil, apperrors.Transport("Failed to encode rows", err)
	}
	resp, err := c.post(ctx, PathAnalyze, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return decodeAnalysis(resp)
}

// Smooth sends a smoothing request against the active dataset
func (c *Client) Smooth(ctx context.Context, req domain.SmoothRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return apperrors.Transport("Failed to encode smoothing request", err)
	}
	resp, err := c.post(ctx, PathSmooth, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return checkEnvelope(resp)
}

// Convert submits files to a conversion endpoint and returns the binary result
func (c *Client) Convert(ctx context.Context, spec domain.ConversionSpec, files []domain.Upload) ([]byte, error) {
	parts := make([]formFile, len(files))
	for i, f := range files {
		parts[i] = formFile{field: spec.FormField, upload: f}
	}
	body, contentType, err := encodeMultipart(parts)
	if err != nil {
		return nil, apperrors.Transport("Failed to encode files", err)
	}
	resp, err := c.post(ctx, spec.Endpoint, contentType, body)
	if err != nil {
		return nil, err
	}

	if isJSON(resp.contentType) || !resp.ok() {
		// A JSON answer from a conversion endpoint is always a failure envelope
		if msg := gjson.GetBytes(resp.body, "error"); msg.Exists() {
			return nil, apperrors.ServerRejected(msg.String())
		}
		return nil, apperrors.ServerRejected(fmt.Sprintf("Conversion failed (HTTP %d)", resp.status))
	}
	if len(resp.body) == 0 {
		return nil, apperrors.Transport("Empty conversion result", fmt.Errorf("HTTP %d with no body", resp.status))
	}
	return resp.body, nil
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// post performs one rate-limited, traced round trip. Only transport failures
// are returned as errors; HTTP status handling is left to the caller.
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*response, error) {
	ctx, span := c.tracer.Start(ctx, "engine "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.path", path),
		))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		terr := apperrors.Transport("Request to analysis engine not sent", err)
		infrastructure.RecordError(ctx, terr)
		return nil, terr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.Transport("Failed to create engine request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, application/pdf, application/zip")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		infrastructure.RecordEngineRequest(ctx, c.metrics, path, 0, time.Since(start))
		terr := apperrors.Transport("Failed to reach analysis engine", err)
		infrastructure.RecordError(ctx, terr)
		c.logger.WarnContext(ctx, "engine request failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, terr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)
	infrastructure.RecordEngineRequest(ctx, c.metrics, path, resp.StatusCode, duration)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		terr := apperrors.Transport("Failed to read engine response", err)
		infrastructure.RecordError(ctx, terr)
		return nil, terr
	}

	c.logger.DebugContext(ctx, "engine request completed",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", duration))

	return &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

// checkEnvelope interprets a {success, error} JSON answer
func checkEnvelope(resp *response) error {
	if !gjson.ValidBytes(resp.body) {
		return apperrors.Transport("Invalid response from analysis engine",
			fmt.Errorf("HTTP %d: %s", resp.status, snippet(resp.body)))
	}
	success := gjson.GetBytes(resp.body, "success")
	if success.Bool() && resp.ok() {
		return nil
	}
	if msg := gjson.GetBytes(resp.body, "error"); msg.Exists() && msg.String() != "" {
		return apperrors.ServerRejected(msg.String())
	}
	if !success.Exists() && resp.ok() {
		return apperrors.Transport("Invalid response from analysis engine",
			fmt.Errorf("missing success flag"))
	}
	return apperrors.ServerRejected(fmt.Sprintf("Request failed (HTTP %d)", resp.status))
}

func decodeAnalysis(resp *response) (*domain.AnalysisResult, error) {
	if err := checkEnvelope(resp); err != nil {
		return nil, err
	}
	var out domain.AnalyzeResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, apperrors.Transport("Invalid analysis payload", err)
	}
	result := out.AnalysisResult
	return &result, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"))
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
