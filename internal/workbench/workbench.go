// Package workbench is the page-level orchestration context of a DataFlow
// session. A Workbench owns the session state, the manual data editor, the
// upload selector and the conversion jobs of one page and drives them
// against a remote analysis engine.
package workbench

import (
	"context"
	"log/slog"
	"sync"

	"dataflow/internal/infrastructure"
	"dataflow/internal/notify"
	"dataflow/pkg/contracts/domain"
	"dataflow/pkg/contracts/events"
)

// Engine is the remote analysis and conversion engine
type Engine interface {
	AnalyzeFile(ctx context.Context, file domain.Upload) (*domain.AnalysisResult, error)
	AnalyzeRows(ctx context.Context, rows []domain.Row) (*domain.AnalysisResult, error)
	Smooth(ctx context.Context, req domain.SmoothRequest) error
	Convert(ctx context.Context, spec domain.ConversionSpec, files []domain.Upload) ([]byte, error)
}

// StateListener is told about every layout or result change
type StateListener func(ctx context.Context, snap Snapshot)

// Options configures a Workbench
type Options struct {
	MaxUploadBytes int64
	Logger         *slog.Logger
	Metrics        *infrastructure.WorkbenchMetrics
	Sinks          []notify.Notifier
	OnStateChange  StateListener
	OnJobChange    JobListener
}

// Workbench is safe for concurrent use by the handlers of one page
type Workbench struct {
	session    *Session
	editor     *Editor
	files      *Selector
	reporter   *notify.Reporter
	engine     Engine
	logger     *slog.Logger
	metrics    *infrastructure.WorkbenchMetrics
	onState    StateListener
	analyzeMu  sync.Mutex
	converters map[domain.ConversionKind]*Conversion
}

// New creates a Workbench for session id
func New(id string, engine Engine, opts Options) *Workbench {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		slog.String("component", "workbench"),
		slog.String("session_id", id),
	)

	w := &Workbench{
		session:    NewSession(id),
		editor:     NewEditor(),
		files:      NewSelector(opts.MaxUploadBytes, false),
		reporter:   notify.NewReporter(opts.Sinks...),
		engine:     engine,
		logger:     logger,
		metrics:    opts.Metrics,
		onState:    opts.OnStateChange,
		converters: make(map[domain.ConversionKind]*Conversion),
	}
	w.reporter.AddSink(notify.NotifierFunc(func(ctx context.Context, n events.Notification) {
		infrastructure.RecordNotification(ctx, w.metrics, string(n.Level))
	}))
	w.files.OnSelect(func(files []domain.Upload) {
		w.session.updateLayout(func(l *Layout) {
			if len(files) > 0 {
				l.ToolsVisible = true
			}
		})
	})

	for _, kind := range domain.ConversionKinds() {
		spec, _ := domain.SpecFor(kind)
		w.converters[kind] = newConversion(spec, engine, opts.MaxUploadBytes, w.reporter, logger, opts.Metrics, opts.OnJobChange)
	}
	return w
}

// ID returns the session id
func (w *Workbench) ID() string {
	return w.session.ID()
}

// Session returns the session state
func (w *Workbench) Session() *Session {
	return w.session
}

// Snapshot returns the current session state
func (w *Workbench) Snapshot() Snapshot {
	return w.session.Snapshot()
}

// Editor returns the manual data editor
func (w *Workbench) Editor() *Editor {
	return w.editor
}

// Files returns the analytics upload selector
func (w *Workbench) Files() *Selector {
	return w.files
}

// Reporter returns the notification reporter
func (w *Workbench) Reporter() *notify.Reporter {
	return w.reporter
}

// Conversion returns the orchestrator of one conversion kind
func (w *Workbench) Conversion(kind domain.ConversionKind) (*Conversion, bool) {
	c, ok := w.converters[kind]
	return c, ok
}

// SelectFile selects the file to analyze and reveals the tools panel
func (w *Workbench) SelectFile(ctx context.Context, file domain.Upload) error {
	if err := w.files.Select([]domain.Upload{file}); err != nil {
		w.reporter.Error(ctx, "upload", err)
		return err
	}
	w.logger.InfoContext(ctx, "File selected",
		slog.String("file", file.Name),
		slog.Int("size", file.Size()))
	w.publish(ctx)
	return nil
}

// ToggleManualEntry shows the manual entry panel and hides the tools and
// results panels, or hides the manual panel when it is already visible.
func (w *Workbench) ToggleManualEntry(ctx context.Context) Layout {
	layout := w.session.updateLayout(func(l *Layout) {
		if l.ManualVisible {
			l.ManualVisible = false
			return
		}
		l.ManualVisible = true
		l.ToolsVisible = false
		l.ResultsVisible = false
	})
	w.publish(ctx)
	return layout
}

// Navigate switches the visible top-level section
func (w *Workbench) Navigate(ctx context.Context, section Section) Layout {
	layout := w.session.updateLayout(func(l *Layout) {
		l.Section = section
	})
	w.publish(ctx)
	return layout
}

// SelectTab switches the active results tab. No request is issued.
func (w *Workbench) SelectTab(ctx context.Context, tab Tab) View {
	w.session.updateLayout(func(l *Layout) {
		l.ActiveTab = tab
	})
	w.publish(ctx)
	return Render(w.session.Snapshot(), tab)
}

func (w *Workbench) setBusy(ctx context.Context, busy bool) {
	w.session.updateLayout(func(l *Layout) {
		l.Busy = busy
	})
	w.publish(ctx)
}

func (w *Workbench) publish(ctx context.Context) {
	if w.onState != nil {
		w.onState(ctx, w.session.Snapshot())
	}
}
