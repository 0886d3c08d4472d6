package workbench

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dataflow/internal/config"
	"dataflow/internal/engine"
	apperrors "dataflow/internal/errors"
	"dataflow/internal/shared/testutil"
	"dataflow/pkg/contracts/domain"
	"dataflow/pkg/contracts/events"
)

func TestAnalyzeFileInstallsResult(t *testing.T) {
	server := testutil.NewEngineServer(t)
	server.RespondJSON(engine.PathAnalyze, 200, testutil.AnalysisPayload())

	cfg := config.Default().Engine
	cfg.BaseURL = server.URL
	client := engine.NewClient(cfg, testLogger(t))
	wb := New("s", client, Options{Logger: testLogger(t)})

	require.NoError(t, wb.SelectFile(context.Background(), csvUpload()))
	result, err := wb.Analyze(context.Background(), domain.InputModeFile)
	require.NoError(t, err)

	snap := wb.Snapshot()
	require.True(t, snap.HasResult())
	assert.Equal(t, result, snap.Result)
	assert.Equal(t, []string{"colX", "colY"}, snap.Result.Columns)
	assert.InDelta(t, 3.14159, *snap.Result.Stats["colX"].Mean, 1e-9)
	assert.Equal(t, domain.InputModeFile, snap.Mode())
	assert.Equal(t, "sales.csv", snap.Dataset.File.Name)

	view := Render(snap, TabStatistics)
	require.NotNil(t, view.Statistics)
	assert.Equal(t, "colX", view.Statistics.Column)

	req := server.Last(t, engine.PathAnalyze)
	assert.Equal(t, []string{"sales.csv"}, req.Files["file"])
}

func TestAnalyzeSuccessRevealsPanels(t *testing.T) {
	f := analyzed(t)

	layout := f.wb.Snapshot().Layout
	assert.True(t, layout.ToolsVisible)
	assert.True(t, layout.ResultsVisible)
	assert.False(t, layout.Busy)
	assert.Equal(t, TabStatistics, layout.ActiveTab)

	assert.Equal(t, []events.Level{events.LevelProgress, events.LevelSuccess}, f.recorder.Levels())
	last, ok := f.recorder.Last()
	require.True(t, ok)
	assert.Equal(t, "Analysis completed successfully", last.Message)
}

func TestAnalyzeManualFiltersRows(t *testing.T) {
	f := newFixture(t)
	fillRow(t, f.wb, 0, "a", "1", "")
	fillRow(t, f.wb, 1, "", "5", "6")
	fillRow(t, f.wb, 2, "b", "", "")
	fillRow(t, f.wb, 3, "c", "", "x")

	want := []domain.Row{{Name: "a", Value1: "1"}, {Name: "c", Value2: "x"}}
	f.engine.On("AnalyzeRows", mock.Anything, want).Return(sampleResult(), nil).Once()

	_, err := f.wb.Analyze(context.Background(), domain.InputModeManual)
	require.NoError(t, err)

	f.engine.AssertExpectations(t)
	assert.Equal(t, want, f.wb.Snapshot().Dataset.Rows)
	assert.Equal(t, domain.InputModeManual, f.wb.Snapshot().Mode())
}

func TestAnalyzeEmptyInputSendsNothing(t *testing.T) {
	tests := []struct {
		name string
		mode domain.InputMode
		prep func(t *testing.T, wb *Workbench)
		msg  string
	}{
		{
			name: "no file selected",
			mode: domain.InputModeFile,
			prep: func(t *testing.T, wb *Workbench) {},
			msg:  "Please select a file first",
		},
		{
			name: "rows without names",
			mode: domain.InputModeManual,
			prep: func(t *testing.T, wb *Workbench) {
				fillRow(t, wb, 0, "", "1", "2")
				fillRow(t, wb, 1, "  ", "3", "")
			},
			msg: "Please enter at least one row with a name and a value",
		},
		{
			name: "named rows without values",
			mode: domain.InputModeManual,
			prep: func(t *testing.T, wb *Workbench) {
				fillRow(t, wb, 0, "a", "", "")
			},
			msg: "Please enter at least one row with a name and a value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.prep(t, f.wb)

			_, err := f.wb.Analyze(context.Background(), tt.mode)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindEmptyInput, apperrors.KindOf(err))
			assert.Equal(t, tt.msg, err.Error())

			f.engine.AssertNotCalled(t, "AnalyzeRows", mock.Anything, mock.Anything)
			f.engine.AssertNotCalled(t, "AnalyzeFile", mock.Anything, mock.Anything)
			assert.Equal(t, uint64(0), f.wb.Session().Generation())

			last, ok := f.recorder.Last()
			require.True(t, ok)
			assert.Equal(t, events.LevelError, last.Level)
			assert.Equal(t, string(apperrors.KindEmptyInput), last.Kind)
		})
	}
}

func TestAnalyzeFailureLeavesSessionUntouched(t *testing.T) {
	f := analyzed(t)
	before := f.wb.Snapshot()

	fillRow(t, f.wb, 0, "z", "9", "")
	f.engine.On("AnalyzeRows", mock.Anything, mock.Anything).
		Return(nil, apperrors.ServerRejected("Could not parse data")).Once()

	_, err := f.wb.Analyze(context.Background(), domain.InputModeManual)
	require.Error(t, err)
	assert.Equal(t, "Could not parse data", err.Error())

	after := f.wb.Snapshot()
	assert.Equal(t, before.Result, after.Result)
	assert.Equal(t, before.Dataset, after.Dataset)
	assert.False(t, after.Layout.Busy)

	last, _ := f.recorder.Last()
	assert.Equal(t, "Could not parse data", last.Message)
	assert.Equal(t, events.LevelError, last.Level)
}

func TestAnalyzeStaleResponseIsDiscarded(t *testing.T) {
	f := newFixture(t)
	fillRow(t, f.wb, 0, "first", "1", "")

	started := make(chan struct{})
	release := make(chan struct{})
	older := &domain.AnalysisResult{Columns: []string{"older"}}
	newer := &domain.AnalysisResult{Columns: []string{"newer"}}

	f.engine.On("AnalyzeRows", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(older, nil).Once()
	f.engine.On("AnalyzeRows", mock.Anything, mock.Anything).Return(newer, nil).Once()

	var wg sync.WaitGroup
	var firstErr, secondErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.wb.Analyze(context.Background(), domain.InputModeManual)
	}()
	<-started

	fillRow(t, f.wb, 0, "second", "2", "")
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, secondErr = f.wb.Analyze(context.Background(), domain.InputModeManual)
	}()
	require.Eventually(t, func() bool {
		return f.wb.Session().Generation() == 2
	}, time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()

	require.Error(t, firstErr)
	assert.Equal(t, apperrors.KindSuperseded, apperrors.KindOf(firstErr))
	require.NoError(t, secondErr)

	snap := f.wb.Snapshot()
	assert.Equal(t, []string{"newer"}, snap.Result.Columns)
	assert.Equal(t, "second", snap.Dataset.Rows[0].Name)
	f.engine.AssertNumberOfCalls(t, "AnalyzeRows", 2)
}

func TestAnalyzeQueuedSupersededCallSkipsEngine(t *testing.T) {
	f := newFixture(t)
	fillRow(t, f.wb, 0, "a", "1", "")

	started := make(chan struct{})
	release := make(chan struct{})
	f.engine.On("AnalyzeRows", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(sampleResult(), nil).Once()
	latest := &domain.AnalysisResult{Columns: []string{"latest"}}
	f.engine.On("AnalyzeRows", mock.Anything, mock.Anything).Return(latest, nil).Once()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	run := func(i int) {
		defer wg.Done()
		_, errs[i] = f.wb.Analyze(context.Background(), domain.InputModeManual)
	}

	wg.Add(1)
	go run(0)
	<-started

	wg.Add(1)
	go run(1)
	require.Eventually(t, func() bool { return f.wb.Session().Generation() == 2 }, time.Second, 5*time.Millisecond)
	wg.Add(1)
	go run(2)
	require.Eventually(t, func() bool { return f.wb.Session().Generation() == 3 }, time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()

	superseded := 0
	for _, err := range errs {
		if apperrors.IsKind(err, apperrors.KindSuperseded) {
			superseded++
		}
	}
	assert.Equal(t, 2, superseded)
	require.NoError(t, errs[2])
	f.engine.AssertNumberOfCalls(t, "AnalyzeRows", 2)
	assert.Equal(t, []string{"latest"}, f.wb.Snapshot().Result.Columns)
}

func TestAnalyzeResultIsIsolatedFromCaller(t *testing.T) {
	f := analyzed(t)

	snap := f.wb.Snapshot()
	snap.Result.Columns[0] = "mutated"
	snap.Result.Stats["colX"] = domain.ColumnStats{}

	again := f.wb.Snapshot()
	assert.Equal(t, "colX", again.Result.Columns[0])
	assert.NotNil(t, again.Result.Stats["colX"].Mean)
}

func TestSelectFileRevealsTools(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.wb.SelectFile(context.Background(), csvUpload()))

	layout := f.wb.Snapshot().Layout
	assert.True(t, layout.ToolsVisible)
	assert.False(t, layout.ResultsVisible)
}

func TestSelectFileTooLarge(t *testing.T) {
	f := newFixture(t)
	big := domain.Upload{Name: "big.csv", Data: make([]byte, 2<<20)}

	err := f.wb.SelectFile(context.Background(), big)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	assert.False(t, f.wb.Snapshot().Layout.ToolsVisible)
}

func TestToggleManualEntry(t *testing.T) {
	f := analyzed(t)

	layout := f.wb.ToggleManualEntry(context.Background())
	assert.True(t, layout.ManualVisible)
	assert.False(t, layout.ToolsVisible)
	assert.False(t, layout.ResultsVisible)

	layout = f.wb.ToggleManualEntry(context.Background())
	assert.False(t, layout.ManualVisible)
	assert.False(t, layout.ToolsVisible)
}

func TestSelectTabIssuesNoRequests(t *testing.T) {
	server := testutil.NewEngineServer(t)
	server.RespondJSON(engine.PathAnalyze, 200, testutil.AnalysisPayload())

	cfg := config.Default().Engine
	cfg.BaseURL = server.URL
	wb := New("s", engine.NewClient(cfg, testLogger(t)), Options{Logger: testLogger(t)})
	fillRow(t, wb, 0, "a", "1", "2")
	_, err := wb.Analyze(context.Background(), domain.InputModeManual)
	require.NoError(t, err)
	require.Equal(t, 1, server.Count(""))

	for _, tab := range []Tab{TabVisualizations, TabCorrelation, TabStatistics, TabCorrelation} {
		view := wb.SelectTab(context.Background(), tab)
		assert.Equal(t, tab, view.Tab)
		assert.Equal(t, tab, wb.Snapshot().Layout.ActiveTab)
	}

	assert.Equal(t, 1, server.Count(""))
}

func TestStateListenerSeesBusyFlag(t *testing.T) {
	engine := &MockEngine{}
	var mu sync.Mutex
	var busy []bool
	wb := New("s", engine, Options{
		Logger: testLogger(t),
		OnStateChange: func(_ context.Context, snap Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			busy = append(busy, snap.Layout.Busy)
		},
	})
	engine.On("AnalyzeRows", mock.Anything, mock.Anything).Return(sampleResult(), nil).Once()
	fillRow(t, wb, 0, "a", "1", "")

	_, err := wb.Analyze(context.Background(), domain.InputModeManual)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, busy)
}
