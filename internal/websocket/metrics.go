package websocket

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HubMetrics holds the hub's OpenTelemetry instruments. A nil *HubMetrics
// records nothing.
type HubMetrics struct {
	activeConnections metric.Int64UpDownCounter
	messagesSent      metric.Int64Counter
	messagesDropped   metric.Int64Counter
	bytesSent         metric.Int64Counter
}

// NewHubMetrics creates the hub instruments from meter
func NewHubMetrics(meter metric.Meter) (*HubMetrics, error) {
	active, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of open WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	sent, err := meter.Int64Counter(
		"websocket_messages_sent_total",
		metric.WithDescription("Total number of messages queued to WebSocket clients"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"websocket_messages_dropped_total",
		metric.WithDescription("Messages dropped because a client send buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	bytesSent, err := meter.Int64Counter(
		"websocket_bytes_sent_total",
		metric.WithDescription("Total bytes queued to WebSocket clients"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &HubMetrics{
		activeConnections: active,
		messagesSent:      sent,
		messagesDropped:   dropped,
		bytesSent:         bytesSent,
	}, nil
}

func (m *HubMetrics) connectionDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.activeConnections.Add(ctx, delta)
}

func (m *HubMetrics) messageSent(ctx context.Context, msgType string, size int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", msgType))
	m.messagesSent.Add(ctx, 1, attrs)
	m.bytesSent.Add(ctx, int64(size), attrs)
}

func (m *HubMetrics) messageDropped(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.messagesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msgType)))
}
