package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataflow/internal/config"
	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	"dataflow/internal/workbench"
)

// WorkbenchFactory builds the workbench of a new session
type WorkbenchFactory func(id string) *workbench.Workbench

type sessionEntry struct {
	wb       *workbench.Workbench
	created  time.Time
	lastSeen time.Time
}

// SessionInfo describes one live session
type SessionInfo struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	LastSeen time.Time `json:"last_seen"`
}

// SessionRegistry owns the workbench of every open page. Sessions idle for
// longer than the TTL are swept; when the registry is full the least
// recently used session is evicted.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry

	ttl           time.Duration
	sweepInterval time.Duration
	maxSessions   int

	factory WorkbenchFactory
	logger  *slog.Logger
	metrics *infrastructure.WorkbenchMetrics
	now     func() time.Time
}

// NewSessionRegistry creates a registry. metrics may be nil.
func NewSessionRegistry(cfg config.SessionConfig, factory WorkbenchFactory, logger *slog.Logger, metrics *infrastructure.WorkbenchMetrics) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		sessions:      make(map[string]*sessionEntry),
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		maxSessions:   cfg.MaxSessions,
		factory:       factory,
		logger:        logger.With(slog.String("component", "session_registry")),
		metrics:       metrics,
		now:           time.Now,
	}
}

// Create opens a new session
func (r *SessionRegistry) Create(ctx context.Context) *workbench.Workbench {
	id := uuid.New().String()
	wb := r.factory(id)
	now := r.now()

	r.mu.Lock()
	var evicted string
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		evicted = r.oldestLocked()
		delete(r.sessions, evicted)
	}
	r.sessions[id] = &sessionEntry{wb: wb, created: now, lastSeen: now}
	count := len(r.sessions)
	r.mu.Unlock()

	if evicted != "" {
		infrastructure.RecordSessionDelta(ctx, r.metrics, -1)
		r.logger.WarnContext(ctx, "Session limit reached, evicted least recently used session",
			slog.String("evicted_session_id", evicted),
			slog.Int("max_sessions", r.maxSessions))
	}
	infrastructure.RecordSessionDelta(ctx, r.metrics, 1)
	r.logger.InfoContext(ctx, "Session created",
		slog.String("session_id", id),
		slog.Int("sessions", count))
	return wb
}

// Get returns the workbench of session id and marks it as used
func (r *SessionRegistry) Get(ctx context.Context, id string) (*workbench.Workbench, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("session").WithContext("session_id", id)
	}
	entry.lastSeen = r.now()
	return entry.wb, nil
}

// Delete closes session id. It reports whether the session existed.
func (r *SessionRegistry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		infrastructure.RecordSessionDelta(ctx, r.metrics, -1)
		r.logger.InfoContext(ctx, "Session closed", slog.String("session_id", id))
	}
	return ok
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// List returns the live sessions, most recently used first
func (r *SessionRegistry) List() []SessionInfo {
	r.mu.Lock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for id, e := range r.sessions {
		out = append(out, SessionInfo{ID: id, Created: e.created, LastSeen: e.lastSeen})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Sweep closes every session idle for longer than the TTL and returns how
// many were closed
func (r *SessionRegistry) Sweep(ctx context.Context) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []string
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, id)
			delete(r.sessions, id)
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	if len(expired) > 0 {
		infrastructure.RecordSessionDelta(ctx, r.metrics, -int64(len(expired)))
		r.logger.InfoContext(ctx, "Expired sessions swept",
			slog.Int("expired", len(expired)),
			slog.Int("sessions", remaining))
	}
	return len(expired)
}

// RunSweeper sweeps every sweep interval until ctx is done
func (r *SessionRegistry) RunSweeper(ctx context.Context) error {
	interval := r.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "Session sweeper started",
		slog.Duration("interval", interval),
		slog.Duration("ttl", r.ttl))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Session sweeper stopped")
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// oldestLocked must be called with mu held
func (r *SessionRegistry) oldestLocked() string {
	var (
		oldest string
		seen   time.Time
	)
	for id, e := range r.sessions {
		if oldest == "" || e.lastSeen.Before(seen) {
			oldest, seen = id, e.lastSeen
		}
	}
	return oldest
}
