package devengine

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeColumn(t *testing.T) {
	s := describeColumn([]float64{4, 1, 3, 2})

	assert.Equal(t, 4.0, *s["count"])
	assert.Equal(t, 2.5, *s["mean"])
	assert.InDelta(t, math.Sqrt(5.0/3.0), *s["std"], 1e-12)
	assert.Equal(t, 1.0, *s["min"])
	assert.Equal(t, 4.0, *s["max"])
	assert.InDelta(t, 1.75, *s["25%"], 1e-12)
	assert.InDelta(t, 2.5, *s["50%"], 1e-12)
	assert.InDelta(t, 3.25, *s["75%"], 1e-12)
}

func TestDescribeSingleValueHasNoStd(t *testing.T) {
	s := describeColumn([]float64{7})

	assert.Equal(t, 1.0, *s["count"])
	assert.Equal(t, 7.0, *s["mean"])
	assert.Contains(t, s, "std")
	assert.Nil(t, s["std"])
	assert.Equal(t, 7.0, *s["50%"])
}

func TestDescribeSkipsTextColumns(t *testing.T) {
	f, err := readCSV(strings.NewReader("name,value\na,1\nb,\nc,3\n"))
	require.NoError(t, err)

	out := describe(f)
	require.Len(t, out, 1)
	assert.Equal(t, 2.0, *out["value"]["count"], "missing cells are not counted")
	assert.Equal(t, 2.0, *out["value"]["mean"])
}

func TestCorrelate(t *testing.T) {
	f, err := readCSV(strings.NewReader("x,y,z,const\n1,2,5,1\n2,4,3,1\n3,6,1,1\n"))
	require.NoError(t, err)

	corr := correlate(f)
	require.Len(t, corr, 4)

	assert.InDelta(t, 1.0, *corr["x"]["x"], 1e-12)
	assert.InDelta(t, 1.0, *corr["x"]["y"], 1e-12)
	assert.InDelta(t, -1.0, *corr["x"]["z"], 1e-12)
	assert.Equal(t, *corr["x"]["z"], *corr["z"]["x"])
	assert.Nil(t, corr["x"]["const"], "zero variance has no correlation")
}

func TestCorrelateNeedsTwoNumericColumns(t *testing.T) {
	f, err := readCSV(strings.NewReader("name,value\na,1\nb,2\n"))
	require.NoError(t, err)

	assert.Empty(t, correlate(f))
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		data []float64
		q    float64
		want float64
	}{
		{[]float64{1, 2, 3, 4, 5}, 0.5, 3},
		{[]float64{1, 2, 3, 4, 5}, 0.25, 2},
		{[]float64{10, 20}, 0.75, 17.5},
		{[]float64{3}, 0.25, 3},
		{[]float64{5, 1, 4, 2, 3}, 0.75, 4},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, quantile(tt.data, tt.q), 1e-12)
	}
	assert.True(t, math.IsNaN(quantile(nil, 0.5)))

	data := []float64{3, 1, 2}
	quantile(data, 0.5)
	assert.Equal(t, []float64{3, 1, 2}, data, "input must not be reordered")
}
