package workbench

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"dataflow/pkg/contracts/domain"
)

// Placeholders shown when a tab has nothing to render
const (
	PlaceholderNoResult         = "Run an analysis to see results"
	PlaceholderNoStatistics     = "No statistics available"
	PlaceholderNoVisualizations = "No visualizations available"
	PlaceholderNoCorrelation    = "No correlation data available"
)

// chartOrder is the display order of the well-known chart kinds
var chartOrder = []string{"bar", "histogram", "scatter", "pie"}

// StatField is one labelled value of the statistics tab
type StatField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StatisticsView is the statistics tab of one column
type StatisticsView struct {
	Column string      `json:"column"`
	Fields []StatField `json:"fields"`
}

// ChartView is one image block of the visualizations tab
type ChartView struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Src   string `json:"src"`
}

// CorrelationCard is one ordered column pair of the correlation tab
type CorrelationCard struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// View is the declarative description of one results tab. Exactly one of
// Statistics, Charts or Correlations is populated, unless Placeholder is set.
type View struct {
	Tab          Tab               `json:"tab"`
	Placeholder  string            `json:"placeholder,omitempty"`
	Statistics   *StatisticsView   `json:"statistics,omitempty"`
	Charts       []ChartView       `json:"charts,omitempty"`
	Correlations []CorrelationCard `json:"correlations,omitempty"`
}

// Render projects a snapshot onto one tab. It performs no I/O.
func Render(snap Snapshot, tab Tab) View {
	view := View{Tab: tab}
	if !snap.HasResult() {
		view.Placeholder = PlaceholderNoResult
		return view
	}

	switch tab {
	case TabVisualizations:
		view.Charts = renderCharts(snap.Result.Charts)
		if len(view.Charts) == 0 {
			view.Placeholder = PlaceholderNoVisualizations
		}
	case TabCorrelation:
		view.Correlations = renderCorrelation(snap.Result)
		if len(view.Correlations) == 0 {
			view.Placeholder = PlaceholderNoCorrelation
		}
	default:
		view.Tab = TabStatistics
		view.Statistics = renderStatistics(snap.Result)
		if view.Statistics == nil {
			view.Placeholder = PlaceholderNoStatistics
		}
	}
	return view
}

// renderStatistics summarizes the first declared column only
func renderStatistics(result *domain.AnalysisResult) *StatisticsView {
	if len(result.Columns) == 0 {
		return nil
	}
	column := result.Columns[0]
	stats := result.Stats[column]

	return &StatisticsView{
		Column: column,
		Fields: []StatField{
			{Label: "Count", Value: formatCount(stats.Count)},
			{Label: "Mean", Value: formatStat(stats.Mean)},
			{Label: "Std Dev", Value: formatStat(stats.Std)},
			{Label: "Min", Value: formatStat(stats.Min)},
			{Label: "Max", Value: formatStat(stats.Max)},
		},
	}
}

func formatCount(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "N/A"
	}
	if *v == math.Trunc(*v) && math.Abs(*v) < 1e15 {
		return strconv.FormatInt(int64(*v), 10)
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatStat(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return "0.00"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func renderCharts(charts map[string]string) []ChartView {
	known := make(map[string]bool, len(chartOrder))
	kinds := make([]string, 0, len(charts))
	for _, kind := range chartOrder {
		known[kind] = true
		if _, ok := charts[kind]; ok {
			kinds = append(kinds, kind)
		}
	}

	var rest []string
	for kind := range charts {
		if !known[kind] {
			rest = append(rest, kind)
		}
	}
	sort.Strings(rest)
	kinds = append(kinds, rest...)

	views := make([]ChartView, 0, len(kinds))
	for _, kind := range kinds {
		src := strings.TrimSpace(charts[kind])
		if !isImageSource(src) {
			continue
		}
		views = append(views, ChartView{
			Kind:  kind,
			Title: capitalize(kind),
			Src:   src,
		})
	}
	return views
}

// isImageSource accepts inline data:image URIs and absolute http(s) URLs
func isImageSource(src string) bool {
	if strings.HasPrefix(strings.ToLower(src), "data:image/") {
		return true
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func renderCorrelation(result *domain.AnalysisResult) []CorrelationCard {
	var cards []CorrelationCard
	for _, left := range orderKeys(result.Columns, result.Correlation) {
		inner := result.Correlation[left]
		for _, right := range orderKeys(result.Columns, inner) {
			if right == left {
				continue
			}
			value := "N/A"
			if v := inner[right]; v != nil && !math.IsNaN(*v) {
				value = strconv.FormatFloat(*v, 'f', 3, 64)
			}
			cards = append(cards, CorrelationCard{
				Left:  left,
				Right: right,
				Label: fmt.Sprintf("%s vs %s", left, right),
				Value: value,
			})
		}
	}
	return cards
}

// orderKeys returns the keys of m in column order, followed by any keys not
// declared as columns in sorted order
func orderKeys[V any](columns []string, m map[string]V) []string {
	seen := make(map[string]bool, len(m))
	keys := make([]string, 0, len(m))
	for _, c := range columns {
		if _, ok := m[c]; ok && !seen[c] {
			seen[c] = true
			keys = append(keys, c)
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
