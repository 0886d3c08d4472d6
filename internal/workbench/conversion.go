package workbench

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	"dataflow/internal/notify"
	"dataflow/pkg/contracts/domain"
)

// Transition is one recorded status change of a conversion job
type Transition struct {
	From domain.JobStatus
	To   domain.JobStatus
	At   time.Time
}

// JobListener is told about every conversion status change. It runs with
// the job locked and must not call back into the Conversion.
type JobListener func(ctx context.Context, job domain.ConversionJob)

// Conversion drives one document-conversion workflow:
// idle -> selecting -> submitting -> done|failed -> idle.
// It never touches the analysis session.
type Conversion struct {
	spec     domain.ConversionSpec
	engine   Engine
	files    *Selector
	reporter *notify.Reporter
	logger   *slog.Logger
	metrics  *infrastructure.WorkbenchMetrics
	onJob    JobListener

	mu           sync.Mutex
	status       domain.JobStatus
	lastError    string
	lastDownload string
	history      []Transition
}

func newConversion(spec domain.ConversionSpec, engine Engine, maxBytes int64, reporter *notify.Reporter, logger *slog.Logger, metrics *infrastructure.WorkbenchMetrics, onJob JobListener) *Conversion {
	return &Conversion{
		spec:     spec,
		engine:   engine,
		files:    NewSelector(maxBytes, spec.Multiple),
		reporter: reporter,
		logger:   logger.With(slog.String("conversion", string(spec.Kind))),
		metrics:  metrics,
		onJob:    onJob,
		status:   domain.JobStatusIdle,
	}
}

// Kind returns the conversion kind
func (c *Conversion) Kind() domain.ConversionKind {
	return c.spec.Kind
}

// Status returns the current status
func (c *Conversion) Status() domain.JobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Job returns a snapshot of the workflow
func (c *Conversion) Job() domain.ConversionJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job()
}

func (c *Conversion) job() domain.ConversionJob {
	return domain.ConversionJob{
		Kind:          c.spec.Kind,
		Status:        c.status,
		SelectedFiles: c.files.Names(),
		LastError:     c.lastError,
		LastDownload:  c.lastDownload,
	}
}

// History returns every transition in order
func (c *Conversion) History() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.history...)
}

// Select records the chosen files. One or more files moves the job to
// selecting; none moves it back to idle. A rejected selection leaves the job
// as it was.
func (c *Conversion) Select(ctx context.Context, files []domain.Upload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == domain.JobStatusSubmitting {
		return apperrors.InvalidInput("a conversion is already in progress")
	}
	if err := c.files.Select(files); err != nil {
		c.reporter.Error(ctx, string(c.spec.Kind), err)
		return err
	}
	if len(files) == 0 {
		c.transition(ctx, domain.JobStatusIdle)
		return nil
	}
	c.transition(ctx, domain.JobStatusSelecting)
	c.logger.InfoContext(ctx, "Files selected for conversion",
		slog.Int("files", len(files)))
	return nil
}

// Submit sends the selected files to the engine and returns the converted
// artifact. The job ends in idle whatever the outcome.
func (c *Conversion) Submit(ctx context.Context) (*domain.Download, error) {
	c.mu.Lock()
	if c.status != domain.JobStatusSelecting {
		c.mu.Unlock()
		err := apperrors.EmptyInput("Please select files first")
		c.reporter.Error(ctx, string(c.spec.Kind), err)
		return nil, err
	}
	files := c.files.Files()
	c.transition(ctx, domain.JobStatusSubmitting)
	c.mu.Unlock()

	c.reporter.Progress(ctx, string(c.spec.Kind), "Converting files...")
	c.logger.InfoContext(ctx, "Conversion submitted", slog.Int("files", len(files)))

	data, err := c.engine.Convert(ctx, c.spec, files)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastError = err.Error()
		c.transition(ctx, domain.JobStatusFailed)
		c.transition(ctx, domain.JobStatusIdle)
		c.files.Clear()
		c.logger.ErrorContext(ctx, "Conversion failed", slog.String("error", err.Error()))
		c.reporter.Error(ctx, string(c.spec.Kind), err)
		infrastructure.RecordConversionJob(ctx, c.metrics, string(c.spec.Kind), string(apperrors.KindOf(err)))
		return nil, err
	}

	download := &domain.Download{
		Filename:    c.spec.Filename,
		ContentType: c.spec.ContentType,
		Data:        data,
	}
	c.lastError = ""
	c.lastDownload = download.Filename
	c.transition(ctx, domain.JobStatusDone)
	c.transition(ctx, domain.JobStatusIdle)
	c.files.Clear()
	c.logger.InfoContext(ctx, "Conversion completed",
		slog.String("filename", download.Filename),
		slog.Int("bytes", len(data)))
	c.reporter.Success(ctx, string(c.spec.Kind), "Conversion completed, downloading "+download.Filename)
	infrastructure.RecordConversionJob(ctx, c.metrics, string(c.spec.Kind), "success")
	return download, nil
}

// transition must be called with mu held
func (c *Conversion) transition(ctx context.Context, to domain.JobStatus) {
	if c.status == to {
		return
	}
	c.history = append(c.history, Transition{From: c.status, To: to, At: time.Now()})
	c.status = to
	if c.onJob != nil {
		c.onJob(ctx, c.job())
	}
}
