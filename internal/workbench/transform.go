package workbench

import (
	"context"
	"log/slog"

	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	"dataflow/pkg/contracts/domain"
)

const sourceTransform = "transform"

// OpenDialog opens the parameter dialog of a transformation tool
func (w *Workbench) OpenDialog(ctx context.Context, kind domain.TransformKind) error {
	if kind != domain.TransformSmoothing {
		err := apperrors.NotImplemented(dialogName(kind))
		w.reporter.Error(ctx, sourceTransform, err)
		return err
	}
	w.session.updateLayout(func(l *Layout) {
		l.Dialog = kind
	})
	w.publish(ctx)
	return nil
}

// CloseDialog closes any open transformation dialog
func (w *Workbench) CloseDialog(ctx context.Context) {
	w.session.updateLayout(func(l *Layout) {
		l.Dialog = ""
	})
	w.publish(ctx)
}

// ApplyTransformation asks the engine to apply a transformation to the
// active dataset. Only smoothing is available; parameter is the window size
// and defaults to 3 when zero. The analysis view is not refreshed afterwards.
func (w *Workbench) ApplyTransformation(ctx context.Context, kind domain.TransformKind, column, method string, parameter int) error {
	if kind != domain.TransformSmoothing {
		err := apperrors.NotImplemented(transformName(kind))
		w.reporter.Error(ctx, sourceTransform, err)
		infrastructure.RecordTransformRun(ctx, w.metrics, string(kind), string(apperrors.KindNotImplemented))
		return err
	}

	snap := w.session.Snapshot()
	req, err := buildSmoothRequest(snap, column, method, parameter)
	if err != nil {
		w.reporter.Error(ctx, sourceTransform, err)
		infrastructure.RecordTransformRun(ctx, w.metrics, string(kind), string(apperrors.KindOf(err)))
		return err
	}

	w.logger.InfoContext(ctx, "Smoothing started",
		slog.String("column", req.Column),
		slog.String("method", req.Method),
		slog.Int("window", req.Window),
		slog.Uint64("generation", snap.Generation))
	w.reporter.Progress(ctx, sourceTransform, "Applying smoothing...")

	err = w.engine.Smooth(ctx, req)

	if !w.session.isCurrent(snap.Generation) {
		w.logger.InfoContext(ctx, "Discarding stale smoothing response",
			slog.Uint64("generation", snap.Generation))
		stale := apperrors.Superseded("smoothing")
		w.reporter.Error(ctx, sourceTransform, stale)
		infrastructure.RecordStaleResponse(ctx, w.metrics, sourceTransform)
		return stale
	}

	if err != nil {
		w.logger.ErrorContext(ctx, "Smoothing failed",
			slog.String("column", req.Column),
			slog.String("error", err.Error()))
		w.reporter.Error(ctx, sourceTransform, err)
		infrastructure.RecordTransformRun(ctx, w.metrics, string(kind), string(apperrors.KindOf(err)))
		return err
	}

	w.CloseDialog(ctx)
	w.reporter.Success(ctx, sourceTransform, "Smoothing applied successfully")
	infrastructure.RecordTransformRun(ctx, w.metrics, string(kind), "success")
	return nil
}

func buildSmoothRequest(snap Snapshot, column, method string, window int) (domain.SmoothRequest, error) {
	if !snap.HasResult() || snap.Dataset.IsEmpty() {
		return domain.SmoothRequest{}, apperrors.EmptyInput("Please analyze a dataset first")
	}
	if !snap.Result.HasColumn(column) {
		return domain.SmoothRequest{}, apperrors.InvalidInputf("column %q is not part of the dataset", column)
	}
	if method == "" {
		method = domain.SmoothMovingAverage
	}
	if !domain.IsSmoothingMethod(method) {
		return domain.SmoothRequest{}, apperrors.InvalidInputf("unknown smoothing method %q", method)
	}
	if window == 0 {
		window = domain.DefaultSmoothingWindow
	}
	if window < 1 {
		return domain.SmoothRequest{}, apperrors.InvalidInputf("window must be at least 1, got %d", window)
	}
	if method == domain.SmoothSavgol && (window < 3 || window%2 == 0) {
		return domain.SmoothRequest{}, apperrors.InvalidInputf("savgol needs an odd window of at least 3, got %d", window)
	}

	req := domain.SmoothRequest{
		Column: column,
		Method: method,
		Window: window,
	}
	if snap.Dataset.Mode == domain.InputModeManual {
		req.Data = snap.Dataset.Rows
	}
	return req, nil
}

func dialogName(kind domain.TransformKind) string {
	switch kind {
	case domain.TransformBinning:
		return "Binning dialog"
	case domain.TransformNormalization:
		return "Normalization dialog"
	}
	return "Transformation dialog"
}

func transformName(kind domain.TransformKind) string {
	switch kind {
	case domain.TransformBinning:
		return "Binning"
	case domain.TransformNormalization:
		return "Normalization"
	}
	return "Transformation"
}
