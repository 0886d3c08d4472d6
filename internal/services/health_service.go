package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"dataflow/pkg/contracts"
)

// SessionCounter reports the number of live sessions
type SessionCounter interface {
	Len() int
}

// StreamCounter reports the sessions with an open notification stream
type StreamCounter interface {
	SessionCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	sessions  SessionCounter
	streams   StreamCounter
	engineURL string
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Sessions         int     `json:"sessions"`
	StreamingClients int     `json:"streaming_sessions"`
	Goroutines       int     `json:"goroutines"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a health service. streams may be nil.
func NewHealthService(sessions SessionCounter, streams StreamCounter, engineURL string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "health"))
	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.String("engine_url", engineURL))

	return &HealthService{
		sessions:  sessions,
		streams:   streams,
		engineURL: engineURL,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.String("uptime", time.Since(hs.startTime).String()))
	return status
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"sessions": hs.checkSessions(),
			"engine":   hs.checkEngine(),
		},
	}

	for _, service := range status.Services {
		if service.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "Readiness check failed",
				slog.String("message", service.Message))
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.sessions != nil {
		stats.Sessions = hs.sessions.Len()
	}
	if hs.streams != nil {
		stats.StreamingClients = hs.streams.SessionCount()
	}
	return stats
}

// Sessions returns the number of live sessions
func (hs *HealthService) Sessions() int {
	if hs.sessions == nil {
		return 0
	}
	return hs.sessions.Len()
}

func (hs *HealthService) checkSessions() ServiceHealth {
	if hs.sessions == nil {
		return ServiceHealth{Status: "not_ready", Message: "session registry not initialized"}
	}
	return ServiceHealth{Status: "ready", Message: "session registry is healthy"}
}

func (hs *HealthService) checkEngine() ServiceHealth {
	if hs.engineURL == "" {
		return ServiceHealth{Status: "not_ready", Message: "analysis engine URL not configured"}
	}
	return ServiceHealth{Status: "ready", Message: "analysis engine at " + hs.engineURL}
}
