package devengine

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// frame is a small column-ordered table of raw cell text. Empty cells are
// missing values.
type frame struct {
	columns []string
	rows    [][]string
}

func (f *frame) len() int { return len(f.rows) }

func (f *frame) index(column string) int {
	for i, c := range f.columns {
		if c == column {
			return i
		}
	}
	return -1
}

func (f *frame) cell(row, col int) string {
	if col < len(f.rows[row]) {
		return f.rows[row][col]
	}
	return ""
}

// numeric returns the column as floats with NaN for missing cells. ok is
// false when any present cell is not a number or the column has no values.
func (f *frame) numeric(col int) (values []float64, ok bool) {
	values = make([]float64, len(f.rows))
	present := 0
	for i := range f.rows {
		text := strings.TrimSpace(f.cell(i, col))
		if text == "" {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
		present++
	}
	return values, present > 0
}

// numericColumns lists the numeric columns in column order
func (f *frame) numericColumns() []string {
	var out []string
	for i, c := range f.columns {
		if _, ok := f.numeric(i); ok {
			out = append(out, c)
		}
	}
	return out
}

// column returns the numeric values of the named column
func (f *frame) column(name string) ([]float64, error) {
	i := f.index(name)
	if i < 0 {
		return nil, fmt.Errorf("'%s'", name)
	}
	values, ok := f.numeric(i)
	if !ok {
		return nil, fmt.Errorf("column '%s' is not numeric", name)
	}
	return values, nil
}

// records returns the rows as objects keyed by column, numbers as float64
// and missing cells as nil
func (f *frame) records() []map[string]interface{} {
	numeric := make([]bool, len(f.columns))
	for i := range f.columns {
		_, numeric[i] = f.numeric(i)
	}

	out := make([]map[string]interface{}, len(f.rows))
	for r := range f.rows {
		rec := make(map[string]interface{}, len(f.columns))
		for c, name := range f.columns {
			text := f.cell(r, c)
			switch {
			case strings.TrimSpace(text) == "":
				rec[name] = nil
			case numeric[c]:
				v, _ := strconv.ParseFloat(strings.TrimSpace(text), 64)
				rec[name] = v
			default:
				rec[name] = text
			}
		}
		out[r] = rec
	}
	return out
}

func newFrame(rows [][]string) (*frame, error) {
	if len(rows) == 0 {
		return nil, errors.New("no columns to parse from file")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		header[i] = h
	}
	return &frame{columns: header, rows: rows[1:]}, nil
}

// readCSV parses CSV text with a header line
func readCSV(r io.Reader) (*frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error tokenizing data: %w", err)
	}
	return newFrame(rows)
}

// readXLSX parses the first sheet of a workbook
func readXLSX(r io.Reader) (*frame, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	return newFrame(rows)
}

// readRecords builds a frame from a JSON array of objects. Columns appear in
// the order their keys are first seen.
func readRecords(data gjson.Result) (*frame, error) {
	if !data.IsArray() {
		return nil, errors.New("'data' must be a list of records")
	}

	f := &frame{}
	positions := map[string]int{}
	var err error
	data.ForEach(func(_, record gjson.Result) bool {
		if !record.IsObject() {
			err = errors.New("'data' must be a list of records")
			return false
		}
		row := make([]string, len(f.columns))
		record.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			i, ok := positions[name]
			if !ok {
				i = len(f.columns)
				positions[name] = i
				f.columns = append(f.columns, name)
			}
			for len(row) <= i {
				row = append(row, "")
			}
			row[i] = cellText(value)
			return true
		})
		f.rows = append(f.rows, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func cellText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return v.Raw
	default:
		return v.String()
	}
}
