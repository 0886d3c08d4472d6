package devengine

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// summary is the describe() block of one numeric column. Values that are
// undefined for the sample, such as the std of a single value, are nil.
type summary map[string]*float64

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func present(values []float64) stats.Float64Data {
	out := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// describe summarizes every numeric column of f
func describe(f *frame) map[string]summary {
	out := map[string]summary{}
	for _, name := range f.numericColumns() {
		values, _ := f.column(name)
		out[name] = describeColumn(present(values))
	}
	return out
}

func describeColumn(data stats.Float64Data) summary {
	s := summary{"count": finite(float64(data.Len()))}
	if data.Len() == 0 {
		return s
	}

	mean, _ := stats.Mean(data)
	lowest, _ := stats.Min(data)
	highest, _ := stats.Max(data)
	s["mean"] = finite(mean)
	s["min"] = finite(lowest)
	s["max"] = finite(highest)

	s["std"] = nil
	if data.Len() > 1 {
		std, err := stats.StandardDeviationSample(data)
		if err == nil {
			s["std"] = finite(std)
		}
	}

	for key, p := range map[string]float64{"25%": 25, "50%": 50, "75%": 75} {
		s[key] = finite(quantile(data, p/100))
	}
	return s
}

// quantile interpolates linearly between the closest ranks
func quantile(data stats.Float64Data, q float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (pos-lo)*(sorted[int(hi)]-sorted[int(lo)])
}

// correlate returns the Pearson correlation matrix of the numeric columns,
// using pairwise complete observations. It is empty for fewer than two
// numeric columns.
func correlate(f *frame) map[string]map[string]*float64 {
	names := f.numericColumns()
	out := map[string]map[string]*float64{}
	if len(names) < 2 {
		return out
	}

	columns := make([][]float64, len(names))
	for i, name := range names {
		columns[i], _ = f.column(name)
	}
	for i, a := range names {
		out[a] = make(map[string]*float64, len(names))
		for j, b := range names {
			out[a][b] = pearson(columns[i], columns[j])
		}
	}
	return out
}

func pearson(x, y []float64) *float64 {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return nil
	}
	return finite(stat.Correlation(xs, ys, nil))
}
