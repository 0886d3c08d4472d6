package http

import (
	"dataflow/internal/workbench"
	"dataflow/pkg/contracts/domain"
	"dataflow/pkg/contracts/events"
)

// RowView is one manual row as typed
type RowView struct {
	Name   string `json:"name"`
	Value1 string `json:"value1"`
	Value2 string `json:"value2"`
}

// StateResponse is the page state returned after every action
type StateResponse struct {
	SessionID    string               `json:"session_id"`
	Mode         string               `json:"mode"`
	Generation   uint64               `json:"generation"`
	HasResult    bool                 `json:"has_result"`
	Layout       workbench.Layout     `json:"layout"`
	Rows         []RowView            `json:"rows"`
	SelectedFile string               `json:"selected_file,omitempty"`
	Notification *events.Notification `json:"notification,omitempty"`
}

// AnalyzeResponse carries the new result and the view of the active tab
type AnalyzeResponse struct {
	State  StateResponse          `json:"state"`
	Result *domain.AnalysisResult `json:"result"`
	View   workbench.View         `json:"view"`
}

// RowResponse answers row edits
type RowResponse struct {
	Index int       `json:"index"`
	Rows  []RowView `json:"rows"`
}

// JobResponse describes one conversion job
type JobResponse struct {
	Kind          string   `json:"kind"`
	Status        string   `json:"status"`
	SelectedFiles []string `json:"selected_files"`
	LastError     string   `json:"last_error,omitempty"`
	LastDownload  string   `json:"last_download,omitempty"`
}

func stateOf(wb *workbench.Workbench) StateResponse {
	snap := wb.Snapshot()
	state := StateResponse{
		SessionID:  snap.ID,
		Mode:       string(snap.Mode()),
		Generation: snap.Generation,
		HasResult:  snap.HasResult(),
		Layout:     snap.Layout,
		Rows:       rowViews(wb.Editor().Rows()),
	}
	if file, ok := wb.Files().First(); ok {
		state.SelectedFile = file.Name
	}
	if n, ok := wb.Reporter().Current(); ok {
		state.Notification = &n
	}
	return state
}

func rowViews(rows []domain.Row) []RowView {
	out := make([]RowView, len(rows))
	for i, r := range rows {
		out[i] = RowView{Name: r.Name, Value1: r.Value1, Value2: r.Value2}
	}
	return out
}

func jobOf(job domain.ConversionJob) JobResponse {
	selected := job.SelectedFiles
	if selected == nil {
		selected = []string{}
	}
	return JobResponse{
		Kind:          string(job.Kind),
		Status:        string(job.Status),
		SelectedFiles: selected,
		LastError:     job.LastError,
		LastDownload:  job.LastDownload,
	}
}
