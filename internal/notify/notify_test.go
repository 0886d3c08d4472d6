package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dataflow/internal/errors"
	"dataflow/internal/shared/testutil"
	"dataflow/pkg/contracts/events"
)

func TestReporterKeepsCurrentMessage(t *testing.T) {
	r := NewReporter()

	_, ok := r.Current()
	assert.False(t, ok)

	r.Progress(context.Background(), "analysis", "Analyzing data...")
	r.Success(context.Background(), "analysis", "Analysis completed successfully")

	current, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, events.LevelSuccess, current.Level)
	assert.Equal(t, "Analysis completed successfully", current.Message)
	assert.Equal(t, "analysis", current.Source)
	assert.False(t, current.Timestamp.IsZero())

	r.Clear()
	_, ok = r.Current()
	assert.False(t, ok)
}

func TestReporterFansOutToSinks(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	r := NewReporter(first)
	r.AddSink(second)

	r.Info(context.Background(), "upload", "sales.csv selected")
	r.Progress(context.Background(), "merge", "Converting files...")

	assert.Equal(t, []events.Level{events.LevelInfo, events.LevelProgress}, first.Levels())
	assert.Equal(t, first.All(), second.All())
}

func TestReporterTimestamps(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &Recorder{}
	r := NewReporter(rec)
	r.now = func() time.Time { return fixed }

	r.Info(context.Background(), "s", "m")
	explicit := fixed.Add(time.Hour)
	r.Notify(context.Background(), events.Notification{Level: events.LevelInfo, Message: "x", Timestamp: explicit})

	all := rec.All()
	require.Len(t, all, 2)
	assert.Equal(t, fixed, all[0].Timestamp)
	assert.Equal(t, explicit, all[1].Timestamp)
}

func TestReporterError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel events.Level
		wantKind  string
		wantText  string
	}{
		{
			name:      "server rejection",
			err:       apperrors.ServerRejected("Unsupported file format"),
			wantLevel: events.LevelError,
			wantKind:  "ServerRejected",
			wantText:  "Unsupported file format",
		},
		{
			name:      "superseded is informational",
			err:       apperrors.Superseded("analysis"),
			wantLevel: events.LevelInfo,
			wantKind:  "Superseded",
			wantText:  "analysis superseded by a newer request",
		},
		{
			name:      "foreign error",
			err:       assert.AnError,
			wantLevel: events.LevelError,
			wantKind:  "Internal",
			wantText:  assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Recorder{}
			r := NewReporter(rec)

			r.Error(context.Background(), "analysis", tt.err)

			last, ok := rec.Last()
			require.True(t, ok)
			assert.Equal(t, tt.wantLevel, last.Level)
			assert.Equal(t, tt.wantKind, last.Kind)
			assert.Equal(t, tt.wantText, last.Message)
		})
	}
}

func TestReporterErrorNil(t *testing.T) {
	rec := &Recorder{}
	r := NewReporter(rec)
	r.Error(context.Background(), "analysis", nil)
	assert.Empty(t, rec.All())
}

func TestNotifierFunc(t *testing.T) {
	var got []string
	r := NewReporter(NotifierFunc(func(_ context.Context, n events.Notification) {
		got = append(got, n.Message)
	}))

	r.Info(context.Background(), "s", "hello")
	assert.Equal(t, []string{"hello"}, got)
}

func TestLogSink(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	r := NewReporter(NewLogSink(logger))

	r.Success(context.Background(), "analysis", "Analysis completed successfully")
	r.Error(context.Background(), "analysis", apperrors.EmptyInput("Please select a file first"))

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "Analysis completed successfully")
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "Please select a file first")
	testutil.AssertLogAttr(t, logs, "component", "notify")
	testutil.AssertLogAttr(t, logs, "kind", "EmptyInput")
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(NewWriterSink(&buf))

	r.Progress(context.Background(), "merge", "Converting files...")
	r.Error(context.Background(), "merge", apperrors.ServerRejected("Invalid PDF"))

	assert.Equal(t, "[progress] Converting files...\n[error] Invalid PDF\n", buf.String())
}
