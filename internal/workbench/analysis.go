package workbench

import (
	"context"
	"log/slog"
	"time"

	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	"dataflow/pkg/contracts/domain"
)

const sourceAnalysis = "analysis"

// Analyze submits the dataset of the given mode to the engine and, on
// success, installs the result as the session's last result.
//
// Calls are serialized per session. Each call starts a new generation once
// its input is valid; a response whose generation is no longer current is
// discarded with a Superseded error, and a queued call that has already been
// superseded when it gets its turn never reaches the engine.
func (w *Workbench) Analyze(ctx context.Context, mode domain.InputMode) (*domain.AnalysisResult, error) {
	dataset, err := w.buildDataset(mode)
	if err != nil {
		w.reporter.Error(ctx, sourceAnalysis, err)
		infrastructure.RecordAnalysisRun(ctx, w.metrics, string(mode), "empty_input")
		return nil, err
	}

	gen := w.session.begin()

	w.analyzeMu.Lock()
	defer w.analyzeMu.Unlock()

	if !w.session.isCurrent(gen) {
		err := apperrors.Superseded("analysis")
		w.logger.InfoContext(ctx, "Queued analysis superseded before sending",
			slog.Uint64("generation", gen))
		w.reporter.Error(ctx, sourceAnalysis, err)
		infrastructure.RecordStaleResponse(ctx, w.metrics, sourceAnalysis)
		return nil, err
	}

	w.setBusy(ctx, true)
	defer w.setBusy(ctx, false)
	w.reporter.Progress(ctx, sourceAnalysis, "Analyzing data...")

	w.logger.InfoContext(ctx, "Analysis started",
		slog.String("mode", string(mode)),
		slog.String("dataset", dataset.Describe()),
		slog.Uint64("generation", gen))
	start := time.Now()

	var result *domain.AnalysisResult
	switch mode {
	case domain.InputModeFile:
		result, err = w.engine.AnalyzeFile(ctx, *dataset.File)
	default:
		result, err = w.engine.AnalyzeRows(ctx, dataset.Rows)
	}

	if !w.session.isCurrent(gen) {
		w.logger.InfoContext(ctx, "Discarding stale analysis response",
			slog.Uint64("generation", gen),
			slog.Uint64("current", w.session.Generation()))
		stale := apperrors.Superseded("analysis")
		w.reporter.Error(ctx, sourceAnalysis, stale)
		infrastructure.RecordStaleResponse(ctx, w.metrics, sourceAnalysis)
		return nil, stale
	}

	if err != nil {
		w.logger.ErrorContext(ctx, "Analysis failed",
			slog.String("mode", string(mode)),
			slog.String("kind", string(apperrors.KindOf(err))),
			slog.String("error", err.Error()))
		w.reporter.Error(ctx, sourceAnalysis, err)
		infrastructure.RecordAnalysisRun(ctx, w.metrics, string(mode), string(apperrors.KindOf(err)))
		return nil, err
	}

	if !w.session.commit(gen, dataset, result) {
		infrastructure.RecordStaleResponse(ctx, w.metrics, sourceAnalysis)
		return nil, apperrors.Superseded("analysis")
	}

	w.logger.InfoContext(ctx, "Analysis completed",
		slog.Int("columns", len(result.Columns)),
		slog.Duration("duration", time.Since(start)),
		slog.Uint64("generation", gen))
	w.reporter.Success(ctx, sourceAnalysis, "Analysis completed successfully")
	infrastructure.RecordAnalysisRun(ctx, w.metrics, string(mode), "success")

	return result.Clone(), nil
}

// buildDataset validates the local input of mode without touching the session
func (w *Workbench) buildDataset(mode domain.InputMode) (domain.Dataset, error) {
	switch mode {
	case domain.InputModeFile:
		file, ok := w.files.First()
		if !ok || file.Size() == 0 {
			return domain.Dataset{}, apperrors.EmptyInput("Please select a file first")
		}
		return domain.Dataset{Mode: domain.InputModeFile, File: &file}, nil
	case domain.InputModeManual:
		rows := FilterRows(w.editor.Rows())
		if len(rows) == 0 {
			return domain.Dataset{}, apperrors.EmptyInput("Please enter at least one row with a name and a value")
		}
		return domain.Dataset{Mode: domain.InputModeManual, Rows: rows}, nil
	default:
		return domain.Dataset{}, apperrors.InvalidInputf("unknown input mode %q", mode)
	}
}
