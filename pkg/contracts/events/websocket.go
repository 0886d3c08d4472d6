// Package events contains event contract definitions for WebSocket communication
// between the workbench server and the page.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeNotification carries one user-visible status message
	MessageTypeNotification MessageType = "notification"

	// MessageTypeSessionState is pushed after the session state changes
	MessageTypeSessionState MessageType = "session:state"

	// MessageTypeConversion is pushed on every conversion job transition
	MessageTypeConversion MessageType = "conversion:status"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// Level is the severity of a notification
type Level string

const (
	LevelSuccess  Level = "success"
	LevelError    Level = "error"
	LevelInfo     Level = "info"
	LevelProgress Level = "progress"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	SessionID string      `json:"session_id,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// Notification is the payload of a notification message
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	// Source names the orchestrator that raised it (analysis, transform, convert:merge, ...)
	Source string `json:"source,omitempty"`
	// Kind is the error kind for error notifications
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionState summarizes the session after a change
type SessionState struct {
	Mode       string `json:"mode"`
	Generation uint64 `json:"generation"`
	HasResult  bool   `json:"has_result"`
	ActiveTab  string `json:"active_tab"`
	Busy       bool   `json:"busy"`
}

// ConversionStatus reports one conversion job transition
type ConversionStatus struct {
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Files    int    `json:"files"`
	Error    string `json:"error,omitempty"`
	Download string `json:"download,omitempty"`
}

// NewMessage creates a new WebSocket message
func NewMessage(msgType MessageType, sessionID string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{
			Type:      msgType,
			Timestamp: time.Now(),
			SessionID: sessionID,
		},
		Data: data,
	}
}
