package websocket

import (
	"context"
	"log/slog"

	"dataflow/internal/notify"
	"dataflow/internal/workbench"
	"dataflow/pkg/contracts/domain"
	"dataflow/pkg/contracts/events"
)

// Notifier returns a sink that pushes every notification of sessionID
func (h *Hub) Notifier(sessionID string) notify.Notifier {
	return notify.NotifierFunc(func(ctx context.Context, n events.Notification) {
		h.send(ctx, sessionID, events.NewMessage(events.MessageTypeNotification, sessionID, n))
	})
}

// StateListener returns a listener that pushes a session:state summary
// after every change of a workbench session
func (h *Hub) StateListener() workbench.StateListener {
	return func(ctx context.Context, snap workbench.Snapshot) {
		h.send(ctx, snap.ID, events.NewMessage(events.MessageTypeSessionState, snap.ID, SessionState(snap)))
	}
}

// JobListener returns a listener that pushes every conversion transition of
// sessionID
func (h *Hub) JobListener(sessionID string) workbench.JobListener {
	return func(ctx context.Context, job domain.ConversionJob) {
		status := events.ConversionStatus{
			Kind:     string(job.Kind),
			Status:   string(job.Status),
			Files:    len(job.SelectedFiles),
			Error:    job.LastError,
			Download: job.LastDownload,
		}
		h.send(ctx, sessionID, events.NewMessage(events.MessageTypeConversion, sessionID, status))
	}
}

// SessionState summarizes snap for the page
func SessionState(snap workbench.Snapshot) events.SessionState {
	return events.SessionState{
		Mode:       string(snap.Mode()),
		Generation: snap.Generation,
		HasResult:  snap.HasResult(),
		ActiveTab:  string(snap.Layout.ActiveTab),
		Busy:       snap.Layout.Busy,
	}
}

func (h *Hub) send(ctx context.Context, sessionID string, msg events.WebSocketMessage) {
	if err := h.Publish(ctx, sessionID, msg); err != nil {
		h.logger.WarnContext(ctx, "Failed to publish message",
			slog.String("type", string(msg.Type)),
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}
