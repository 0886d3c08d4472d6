package workbench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/pkg/contracts/domain"
)

func snapshotWith(result *domain.AnalysisResult) Snapshot {
	return Snapshot{ID: "s", Result: result}
}

func TestRenderWithoutResult(t *testing.T) {
	for _, tab := range Tabs() {
		view := Render(Snapshot{}, tab)
		assert.Equal(t, PlaceholderNoResult, view.Placeholder)
		assert.Nil(t, view.Statistics)
		assert.Empty(t, view.Charts)
		assert.Empty(t, view.Correlations)
	}
}

func TestRenderStatisticsFirstColumn(t *testing.T) {
	view := Render(snapshotWith(sampleResult()), TabStatistics)

	require.NotNil(t, view.Statistics)
	assert.Equal(t, "colX", view.Statistics.Column)
	assert.Equal(t, []StatField{
		{Label: "Count", Value: "10"},
		{Label: "Mean", Value: "3.14"},
		{Label: "Std Dev", Value: "1.00"},
		{Label: "Min", Value: "0.00"},
		{Label: "Max", Value: "5.00"},
	}, view.Statistics.Fields)
}

func TestRenderStatisticsMissingValues(t *testing.T) {
	result := &domain.AnalysisResult{
		Columns: []string{"empty", "other"},
		Stats: map[string]domain.ColumnStats{
			"empty": {Mean: domain.Float(2.005)},
			"other": {Count: domain.Float(3)},
		},
	}

	view := Render(snapshotWith(result), TabStatistics)

	require.NotNil(t, view.Statistics)
	assert.Equal(t, "empty", view.Statistics.Column)
	values := map[string]string{}
	for _, f := range view.Statistics.Fields {
		values[f.Label] = f.Value
	}
	assert.Equal(t, "N/A", values["Count"])
	assert.Equal(t, "0.00", values["Std Dev"])
	assert.Equal(t, "0.00", values["Min"])
	assert.Equal(t, "0.00", values["Max"])
}

func TestRenderFractionalCount(t *testing.T) {
	result := &domain.AnalysisResult{
		Columns: []string{"a"},
		Stats:   map[string]domain.ColumnStats{"a": {Count: domain.Float(2.5)}},
	}
	view := Render(snapshotWith(result), TabStatistics)
	assert.Equal(t, "2.50", view.Statistics.Fields[0].Value)
}

func TestRenderStatisticsWithoutColumns(t *testing.T) {
	view := Render(snapshotWith(&domain.AnalysisResult{}), TabStatistics)
	assert.Nil(t, view.Statistics)
	assert.Equal(t, PlaceholderNoStatistics, view.Placeholder)
}

func TestRenderChartsOrderAndTitles(t *testing.T) {
	result := &domain.AnalysisResult{
		Columns: []string{"a"},
		Charts: map[string]string{
			"pie":       "data:image/png;base64,AAA",
			"boxplot":   "https://charts.example.com/box.png",
			"scatter":   "data:image/png;base64,BBB",
			"bar":       "data:image/svg+xml;base64,CCC",
			"area":      "data:image/png;base64,DDD",
			"histogram": "data:image/png;base64,EEE",
		},
	}

	view := Render(snapshotWith(result), TabVisualizations)

	var kinds, titles []string
	for _, c := range view.Charts {
		kinds = append(kinds, c.Kind)
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"bar", "histogram", "scatter", "pie", "area", "boxplot"}, kinds)
	assert.Equal(t, []string{"Bar", "Histogram", "Scatter", "Pie", "Area", "Boxplot"}, titles)
	assert.Empty(t, view.Placeholder)
}

func TestRenderChartsDropsUnsafeSources(t *testing.T) {
	result := &domain.AnalysisResult{
		Charts: map[string]string{
			"bar":     "javascript:alert(1)",
			"pie":     "data:text/html;base64,PHNjcmlwdD4=",
			"scatter": "/relative/path.png",
			"line":    "http://example.com/line.png",
		},
	}

	view := Render(snapshotWith(result), TabVisualizations)

	require.Len(t, view.Charts, 1)
	assert.Equal(t, "line", view.Charts[0].Kind)
}

func TestRenderNoVisualizations(t *testing.T) {
	view := Render(snapshotWith(&domain.AnalysisResult{Columns: []string{"a"}}), TabVisualizations)
	assert.Empty(t, view.Charts)
	assert.Equal(t, "No visualizations available", view.Placeholder)
}

func TestRenderCorrelationPairs(t *testing.T) {
	result := &domain.AnalysisResult{
		Columns: []string{"A", "B"},
		Correlation: map[string]map[string]*float64{
			"A": {"A": domain.Float(1), "B": domain.Float(0.5)},
			"B": {"A": domain.Float(0.5), "B": domain.Float(1)},
		},
	}

	view := Render(snapshotWith(result), TabCorrelation)

	assert.Equal(t, []CorrelationCard{
		{Left: "A", Right: "B", Label: "A vs B", Value: "0.500"},
		{Left: "B", Right: "A", Label: "B vs A", Value: "0.500"},
	}, view.Correlations)
}

func TestRenderCorrelationOrderingAndMissing(t *testing.T) {
	result := &domain.AnalysisResult{
		Columns: []string{"z", "a"},
		Correlation: map[string]map[string]*float64{
			"a":     {"z": domain.Float(-0.12345), "extra": nil},
			"z":     {"a": domain.Float(-0.12345)},
			"extra": {"a": nil},
		},
	}

	view := Render(snapshotWith(result), TabCorrelation)

	var labels, values []string
	for _, c := range view.Correlations {
		labels = append(labels, c.Label)
		values = append(values, c.Value)
	}
	assert.Equal(t, []string{"z vs a", "a vs z", "a vs extra", "extra vs a"}, labels)
	assert.Equal(t, []string{"-0.123", "-0.123", "N/A", "N/A"}, values)
}

func TestRenderNoCorrelation(t *testing.T) {
	view := Render(snapshotWith(&domain.AnalysisResult{Columns: []string{"a"}}), TabCorrelation)
	assert.Equal(t, PlaceholderNoCorrelation, view.Placeholder)
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab(" Correlation ")
	require.NoError(t, err)
	assert.Equal(t, TabCorrelation, tab)

	_, err = ParseTab("summary")
	assert.Error(t, err)
}
