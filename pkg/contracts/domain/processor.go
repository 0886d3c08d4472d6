package domain

import (
	"fmt"
	"strings"
)

// TransformKind names a transformation tool offered on the active dataset
type TransformKind string

const (
	TransformSmoothing     TransformKind = "smoothing"
	TransformBinning       TransformKind = "binning"
	TransformNormalization TransformKind = "normalization"
)

// ParseTransformKind converts a request value into a TransformKind
func ParseTransformKind(s string) (TransformKind, error) {
	switch kind := TransformKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case TransformSmoothing, TransformBinning, TransformNormalization:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown transformation %q", s)
	}
}

// Smoothing methods understood by the engine
const (
	SmoothMovingAverage = "moving_average"
	SmoothExponential   = "exponential"
	SmoothSavgol        = "savgol"
)

// DefaultSmoothingWindow is used when no window parameter is supplied
const DefaultSmoothingWindow = 3

// IsSmoothingMethod reports whether method is supported
func IsSmoothingMethod(method string) bool {
	switch method {
	case SmoothMovingAverage, SmoothExponential, SmoothSavgol:
		return true
	}
	return false
}

// SmoothRequest is the JSON body of a smoothing call. Data is null when the
// active dataset is an uploaded file.
type SmoothRequest struct {
	Data   []Row  `json:"data"`
	Column string `json:"column"`
	Method string `json:"method"`
	Window int    `json:"window"`
}

// TransformResponse is the envelope returned by transformation endpoints
type TransformResponse struct {
	Success bool                     `json:"success"`
	Error   string                   `json:"error,omitempty"`
	Data    []map[string]interface{} `json:"data,omitempty"`
}
