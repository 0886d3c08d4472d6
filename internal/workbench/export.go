package workbench

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "dataflow/internal/errors"
	"dataflow/pkg/contracts/domain"
)

// ExportFilename is the attachment name of an analysis export
const ExportFilename = "analysis_results.json"

// Export serializes the last analysis result as indented JSON
func (w *Workbench) Export() (*domain.Download, error) {
	snap := w.session.Snapshot()
	if !snap.HasResult() {
		return nil, apperrors.EmptyInput("No analysis results to export")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap.Result); err != nil {
		return nil, apperrors.New(apperrors.KindInternal, "Failed to export results", fmt.Errorf("encode result: %w", err))
	}

	return &domain.Download{
		Filename:    ExportFilename,
		ContentType: "application/json",
		Data:        buf.Bytes(),
	}, nil
}
