package workbench

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"

	"dataflow/internal/notify"
	"dataflow/internal/shared/testutil"
	"dataflow/pkg/contracts/domain"
)

// MockEngine is a mock for the Engine interface
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) AnalyzeFile(ctx context.Context, file domain.Upload) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, file)
	result, _ := args.Get(0).(*domain.AnalysisResult)
	return result, args.Error(1)
}

func (m *MockEngine) AnalyzeRows(ctx context.Context, rows []domain.Row) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, rows)
	result, _ := args.Get(0).(*domain.AnalysisResult)
	return result, args.Error(1)
}

func (m *MockEngine) Smooth(ctx context.Context, req domain.SmoothRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockEngine) Convert(ctx context.Context, spec domain.ConversionSpec, files []domain.Upload) ([]byte, error) {
	args := m.Called(ctx, spec, files)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func testLogger(t *testing.T) *slog.Logger {
	logger, _ := testutil.NewTestLogger(t)
	return logger
}

// sampleResult mirrors testutil.AnalysisPayload
func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Columns: []string{"colX", "colY"},
		Stats: map[string]domain.ColumnStats{
			"colX": {
				Count: domain.Float(10),
				Mean:  domain.Float(3.14159),
				Std:   domain.Float(1.0),
				Min:   domain.Float(0),
				Max:   domain.Float(5),
			},
		},
		Correlation: map[string]map[string]*float64{
			"colX": {"colX": domain.Float(1), "colY": domain.Float(0.5)},
			"colY": {"colX": domain.Float(0.5), "colY": domain.Float(1)},
		},
		Charts: map[string]string{
			"bar": "data:image/png;base64,iVBORw0KGgo=",
		},
		Shape: []int{10, 2},
	}
}

func csvUpload() domain.Upload {
	return domain.Upload{
		Name:        "sales.csv",
		ContentType: "text/csv",
		Data:        []byte("colX,colY\n1,2\n3,4\n"),
	}
}

type fixture struct {
	wb       *Workbench
	engine   *MockEngine
	recorder *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := &MockEngine{}
	recorder := &notify.Recorder{}
	wb := New("session-1", engine, Options{
		MaxUploadBytes: 1 << 20,
		Logger:         testLogger(t),
		Sinks:          []notify.Notifier{recorder},
	})
	return &fixture{wb: wb, engine: engine, recorder: recorder}
}

// analyzed returns a fixture whose session already holds sampleResult for
// manual rows
func analyzed(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.engine.On("AnalyzeRows", mock.Anything, mock.Anything).Return(sampleResult(), nil).Once()
	fillRow(t, f.wb, 0, "a", "1", "2")
	_, err := f.wb.Analyze(context.Background(), domain.InputModeManual)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return f
}

func fillRow(t *testing.T, wb *Workbench, i int, name, v1, v2 string) {
	t.Helper()
	for wb.Editor().Len() <= i {
		wb.Editor().AddRow()
	}
	for field, value := range map[domain.RowField]string{
		domain.FieldName:   name,
		domain.FieldValue1: v1,
		domain.FieldValue2: v2,
	} {
		if err := wb.Editor().UpdateField(i, field, value); err != nil {
			t.Fatalf("update field: %v", err)
		}
	}
}
