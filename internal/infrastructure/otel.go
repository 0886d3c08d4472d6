package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"dataflow/internal/config"
	"dataflow/pkg/contracts"
)

const (
	ServiceName = "dataflow-workbench"
	MeterName   = "dataflow"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// NewOTelConfig builds the OpenTelemetry configuration for a service
func NewOTelConfig(serviceName string, cfg config.TelemetryConfig) *OTelConfig {
	return &OTelConfig{
		ServiceName:    serviceName,
		ServiceVersion: contracts.Version,
		Environment:    cfg.Environment,
		TraceExporter:  cfg.TraceExporter,
		MetricExporter: cfg.MetricExporter,
		EnableMetrics:  cfg.EnableMetrics,
		EnableTracing:  cfg.EnableTracing,
		SampleRatio:    cfg.SampleRatio,
	}
}

// InitializeOTel initializes tracing and metrics. Disabled signals fall back
// to the global no-op providers, so Tracer and Meter are always usable.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.Tracer(MeterName),
		Meter:  otel.Meter(MeterName),
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// WorkbenchMetrics holds all application-specific metrics
type WorkbenchMetrics struct {
	// Engine client metrics
	EngineRequestsTotal   metric.Int64Counter
	EngineRequestDuration metric.Float64Histogram

	// Orchestrator metrics
	AnalysisRunsTotal   metric.Int64Counter
	TransformRunsTotal  metric.Int64Counter
	ConversionJobsTotal metric.Int64Counter
	StaleResponsesTotal metric.Int64Counter
	ActiveSessions      metric.Int64UpDownCounter
	NotificationsTotal  metric.Int64Counter
}

// CreateWorkbenchMetrics creates application-specific metrics
func CreateWorkbenchMetrics(meter metric.Meter) (*WorkbenchMetrics, error) {
	engineRequestsTotal, err := meter.Int64Counter(
		"engine_requests_total",
		metric.WithDescription("Total number of requests sent to the analysis engine"),
	)
	if err != nil {
		return nil, err
	}

	engineRequestDuration, err := meter.Float64Histogram(
		"engine_request_duration_seconds",
		metric.WithDescription("Analysis engine request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	analysisRunsTotal, err := meter.Int64Counter(
		"analysis_runs_total",
		metric.WithDescription("Total number of analysis runs by mode and outcome"),
	)
	if err != nil {
		return nil, err
	}

	transformRunsTotal, err := meter.Int64Counter(
		"transform_runs_total",
		metric.WithDescription("Total number of transformation requests by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	conversionJobsTotal, err := meter.Int64Counter(
		"conversion_jobs_total",
		metric.WithDescription("Total number of conversion jobs by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	staleResponsesTotal, err := meter.Int64Counter(
		"stale_responses_total",
		metric.WithDescription("Responses discarded because a newer request superseded them"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of live workbench sessions"),
	)
	if err != nil {
		return nil, err
	}

	notificationsTotal, err := meter.Int64Counter(
		"notifications_total",
		metric.WithDescription("User notifications by level"),
	)
	if err != nil {
		return nil, err
	}

	return &WorkbenchMetrics{
		EngineRequestsTotal:   engineRequestsTotal,
		EngineRequestDuration: engineRequestDuration,
		AnalysisRunsTotal:     analysisRunsTotal,
		TransformRunsTotal:    transformRunsTotal,
		ConversionJobsTotal:   conversionJobsTotal,
		StaleResponsesTotal:   staleResponsesTotal,
		ActiveSessions:        activeSessions,
		NotificationsTotal:    notificationsTotal,
	}, nil
}

// RecordEngineRequest records one engine round trip
func RecordEngineRequest(ctx context.Context, metrics *WorkbenchMetrics, endpoint string, status int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Int("status", status),
	)
	metrics.EngineRequestsTotal.Add(ctx, 1, attrs)
	metrics.EngineRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAnalysisRun counts one analysis call by input mode and outcome
func RecordAnalysisRun(ctx context.Context, metrics *WorkbenchMetrics, mode, outcome string) {
	if metrics == nil {
		return
	}
	recordOutcome(ctx, metrics.AnalysisRunsTotal, "mode", mode, outcome)
}

// RecordTransformRun counts one transformation request by kind and outcome
func RecordTransformRun(ctx context.Context, metrics *WorkbenchMetrics, kind, outcome string) {
	if metrics == nil {
		return
	}
	recordOutcome(ctx, metrics.TransformRunsTotal, "kind", kind, outcome)
}

// RecordConversionJob counts one conversion submission by kind and outcome
func RecordConversionJob(ctx context.Context, metrics *WorkbenchMetrics, kind, outcome string) {
	if metrics == nil {
		return
	}
	recordOutcome(ctx, metrics.ConversionJobsTotal, "kind", kind, outcome)
}

// RecordNotification counts one user notification by level
func RecordNotification(ctx context.Context, metrics *WorkbenchMetrics, level string) {
	if metrics == nil {
		return
	}
	metrics.NotificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// RecordSessionDelta tracks sessions created (+1) and expired (-1)
func RecordSessionDelta(ctx context.Context, metrics *WorkbenchMetrics, delta int64) {
	if metrics == nil {
		return
	}
	metrics.ActiveSessions.Add(ctx, delta)
}

func recordOutcome(ctx context.Context, counter metric.Int64Counter, key, value, outcome string) {
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(key, value),
		attribute.String("outcome", outcome),
	))
}

// RecordStaleResponse counts a response discarded by the generation guard
func RecordStaleResponse(ctx context.Context, metrics *WorkbenchMetrics, operation string) {
	if metrics == nil {
		return
	}
	metrics.StaleResponsesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
