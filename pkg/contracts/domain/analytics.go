package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InputMode identifies where the active dataset of a session came from
type InputMode string

const (
	InputModeNone   InputMode = "none"
	InputModeFile   InputMode = "file"
	InputModeManual InputMode = "manual"
)

// ParseInputMode converts a request value into an InputMode
func ParseInputMode(s string) (InputMode, error) {
	switch mode := InputMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case InputModeFile, InputModeManual:
		return mode, nil
	default:
		return InputModeNone, fmt.Errorf("unknown input mode %q", s)
	}
}

// RowField names one editable cell of a Row
type RowField string

const (
	FieldName   RowField = "name"
	FieldValue1 RowField = "value1"
	FieldValue2 RowField = "value2"
)

// Row is one manually entered record. Values hold the raw text typed by the
// user; they are sent as numbers when they parse as numbers.
type Row struct {
	Name   string `json:"name"`
	Value1 string `json:"value1"`
	Value2 string `json:"value2"`
}

// IsBlank reports whether the row would be dropped before submission
func (r Row) IsBlank() bool {
	if strings.TrimSpace(r.Name) == "" {
		return true
	}
	return strings.TrimSpace(r.Value1) == "" && strings.TrimSpace(r.Value2) == ""
}

// MarshalJSON emits numeric values as JSON numbers
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"name":   r.Name,
		"value1": cellValue(r.Value1),
		"value2": cellValue(r.Value2),
	})
}

// UnmarshalJSON accepts values as strings or numbers
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string          `json:"name"`
		Value1 json.RawMessage `json:"value1"`
		Value2 json.RawMessage `json:"value2"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v1, err := cellText(raw.Value1)
	if err != nil {
		return fmt.Errorf("value1: %w", err)
	}
	v2, err := cellText(raw.Value2)
	if err != nil {
		return fmt.Errorf("value2: %w", err)
	}
	*r = Row{Name: raw.Name, Value1: v1, Value2: v2}
	return nil
}

func cellValue(s string) interface{} {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

func cellText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", string(raw))
	}
	return n.String(), nil
}

// ColumnStats holds the describe() summary of one column. Nil fields were
// not supplied by the engine.
type ColumnStats struct {
	Count *float64 `json:"count,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
	Std   *float64 `json:"std,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// AnalysisResult is the payload returned by a successful analysis call.
// It is treated as immutable once received.
type AnalysisResult struct {
	Columns     []string                       `json:"columns"`
	Stats       map[string]ColumnStats         `json:"stats"`
	Correlation map[string]map[string]*float64 `json:"correlation"`
	Charts      map[string]string              `json:"charts"`
	Shape       []int                          `json:"shape,omitempty"`
}

// HasColumn reports whether name is one of the declared columns
func (a *AnalysisResult) HasColumn(name string) bool {
	if a == nil {
		return false
	}
	for _, c := range a.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share maps with the session
func (a *AnalysisResult) Clone() *AnalysisResult {
	if a == nil {
		return nil
	}
	out := &AnalysisResult{
		Columns: append([]string(nil), a.Columns...),
		Shape:   append([]int(nil), a.Shape...),
	}
	if a.Stats != nil {
		out.Stats = make(map[string]ColumnStats, len(a.Stats))
		for k, v := range a.Stats {
			out.Stats[k] = ColumnStats{
				Count: copyFloat(v.Count),
				Mean:  copyFloat(v.Mean),
				Std:   copyFloat(v.Std),
				Min:   copyFloat(v.Min),
				Max:   copyFloat(v.Max),
			}
		}
	}
	if a.Correlation != nil {
		out.Correlation = make(map[string]map[string]*float64, len(a.Correlation))
		for col, inner := range a.Correlation {
			row := make(map[string]*float64, len(inner))
			for k, v := range inner {
				row[k] = copyFloat(v)
			}
			out.Correlation[col] = row
		}
	}
	if a.Charts != nil {
		out.Charts = make(map[string]string, len(a.Charts))
		for k, v := range a.Charts {
			out.Charts[k] = v
		}
	}
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to f, for building results in code and tests
func Float(f float64) *float64 {
	return &f
}

// Dataset is the input bound to the current analysis: either the uploaded
// file or the filtered manual rows.
type Dataset struct {
	Mode InputMode `json:"mode"`
	File *Upload   `json:"-"`
	Rows []Row     `json:"rows,omitempty"`
}

// IsEmpty reports whether the dataset can back a request
func (d Dataset) IsEmpty() bool {
	switch d.Mode {
	case InputModeFile:
		return d.File == nil || len(d.File.Data) == 0
	case InputModeManual:
		return len(d.Rows) == 0
	default:
		return true
	}
}

// Describe returns a short label for logs and the page header
func (d Dataset) Describe() string {
	switch d.Mode {
	case InputModeFile:
		if d.File != nil {
			return d.File.Name
		}
	case InputModeManual:
		return fmt.Sprintf("%d manual rows", len(d.Rows))
	}
	return "no dataset"
}

// AnalyzeRowsRequest is the JSON body of a manual analysis call
type AnalyzeRowsRequest struct {
	Data []Row `json:"data"`
}

// AnalyzeResponse is the envelope returned by the analysis endpoint
type AnalyzeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	AnalysisResult
}
