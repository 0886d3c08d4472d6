package devengine

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	histogramBins = 30
	barLimit      = 10
	pieLimit      = 5
	pieMaxRows    = 20
)

var (
	barColor       = drawing.ColorFromHex("667eea")
	histogramColor = drawing.ColorFromHex("764ba2").WithAlpha(178)
	scatterColor   = drawing.ColorFromHex("f093fb")
)

// renderer draws the analysis charts as PNG data URIs
type renderer struct {
	width  int
	height int
}

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func dataURI(c renderable) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// charts renders every chart that applies to f. A chart that fails to
// render is reported in failed and left out.
func (r renderer) charts(f *frame) (charts map[string]string, failed map[string]error) {
	charts = map[string]string{}
	failed = map[string]error{}
	names := f.numericColumns()
	if len(names) == 0 {
		return charts, failed
	}

	add := func(key string, c renderable) {
		uri, err := dataURI(c)
		if err != nil {
			failed[key] = err
			return
		}
		charts[key] = uri
	}

	first, _ := f.column(names[0])
	counts := valueCounts(first)

	add("bar", r.bar(names[0], counts))
	add("histogram", r.histogram(names[0], present(first)))

	if len(names) >= 2 {
		second, _ := f.column(names[1])
		add("scatter", r.scatter(names[0], names[1], first, second))
		if f.len() <= pieMaxRows {
			add("pie", r.pie(names[0], counts))
		}
	}
	return charts, failed
}

type valueCount struct {
	value float64
	count int
}

// valueCounts counts distinct present values, most frequent first. Ties keep
// the order of first appearance.
func valueCounts(values []float64) []valueCount {
	var out []valueCount
	index := map[float64]int{}
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if i, ok := index[v]; ok {
			out[i].count++
			continue
		}
		index[v] = len(out)
		out = append(out, valueCount{value: v, count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}

func label(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (r renderer) bar(column string, counts []valueCount) chart.BarChart {
	if len(counts) > barLimit {
		counts = counts[:barLimit]
	}
	bars := make([]chart.Value, len(counts))
	top := 1.0
	for i, c := range counts {
		bars[i] = chart.Value{
			Value: float64(c.count),
			Label: label(c.value),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		}
		top = math.Max(top, float64(c.count))
	}
	return chart.BarChart{
		Title:    "Distribution of " + column,
		Width:    r.width,
		Height:   r.height,
		BarWidth: 40,
		YAxis:    chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: top}},
		Bars:     bars,
	}
}

func (r renderer) histogram(column string, data []float64) chart.Chart {
	lo, hi := bounds(data)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / histogramBins

	counts := make([]float64, histogramBins)
	for _, v := range data {
		bin := int((v - lo) / width)
		if bin >= histogramBins {
			bin = histogramBins - 1
		}
		counts[bin]++
	}
	xs := make([]float64, histogramBins)
	top := 1.0
	for i := range xs {
		xs[i] = lo + (float64(i)+0.5)*width
		top = math.Max(top, counts[i])
	}

	return chart.Chart{
		Title:  "Histogram of " + column,
		Width:  r.width,
		Height: r.height,
		XAxis:  chart.XAxis{Name: column, Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		YAxis:  chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: top}},
		Series: []chart.Series{
			chart.HistogramSeries{
				Name:  column,
				Style: chart.Style{FillColor: histogramColor, StrokeColor: histogramColor},
				InnerSeries: chart.ContinuousSeries{
					XValues: xs,
					YValues: counts,
				},
			},
		},
	}
}

func (r renderer) scatter(xName, yName string, x, y []float64) chart.Chart {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return chart.Chart{
		Title:  "Scatter Plot",
		Width:  r.width,
		Height: r.height,
		XAxis:  chart.XAxis{Name: xName, Range: padded(bounds(xs))},
		YAxis:  chart.YAxis{Name: yName, Range: padded(bounds(ys))},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    5,
					DotColor:    scatterColor,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}
}

func (r renderer) pie(column string, counts []valueCount) chart.PieChart {
	if len(counts) > pieLimit {
		counts = counts[:pieLimit]
	}
	total := 0
	for _, c := range counts {
		total += c.count
	}
	values := make([]chart.Value, len(counts))
	for i, c := range counts {
		values[i] = chart.Value{
			Value: float64(c.count),
			Label: fmt.Sprintf("%s (%.1f%%)", label(c.value), 100*float64(c.count)/float64(total)),
		}
	}
	return chart.PieChart{
		Title:  "Pie Chart of " + column,
		Width:  r.width,
		Height: r.height,
		Values: values,
	}
}

func bounds(data []float64) (lo, hi float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// padded widens a range by five percent on each side, or by one when it is
// a single point
func padded(lo, hi float64) *chart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
