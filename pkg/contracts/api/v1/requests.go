// Package api contains API contract definitions for the workbench web surface.
// Version v1 represents the current stable API version.
package api

// UpdateFieldRequest edits one cell of a manual row
type UpdateFieldRequest struct {
	Field string `json:"field" validate:"required,oneof=name value1 value2"`
	Value string `json:"value"`
}

// TransformRequest applies a transformation to the active dataset.
// Parameter is the smoothing window; zero means the default.
type TransformRequest struct {
	Kind      string `json:"kind" validate:"required,oneof=smoothing binning normalization"`
	Column    string `json:"column"`
	Method    string `json:"method"`
	Parameter int    `json:"parameter" validate:"min=0,max=1000"`
}

// AnalyzeQuery is the query of an analysis request
type AnalyzeQuery struct {
	Mode string `json:"mode" validate:"required,oneof=file manual"`
}

// SessionResponse is returned when a session is created
type SessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}
