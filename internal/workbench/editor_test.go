package workbench

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dataflow/internal/errors"
	"dataflow/pkg/contracts/domain"
)

func TestEditorStartsWithOneRow(t *testing.T) {
	e := NewEditor()
	assert.Equal(t, 1, e.Len())
	assert.Equal(t, []domain.Row{{}}, e.Rows())
}

func TestEditorKeepsOrderAcrossEdits(t *testing.T) {
	e := NewEditor()
	e.AddRow()
	e.AddRow()

	require.NoError(t, e.UpdateField(0, domain.FieldName, "first"))
	require.NoError(t, e.UpdateField(1, domain.FieldName, "second"))
	require.NoError(t, e.UpdateField(2, domain.FieldName, "third"))
	require.NoError(t, e.UpdateField(1, domain.FieldValue1, "4.5"))
	require.NoError(t, e.RemoveRow(0))

	rows := e.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0].Name)
	assert.Equal(t, "4.5", rows[0].Value1)
	assert.Equal(t, "third", rows[1].Name)
}

func TestEditorRemoveLastRowInsertsReplacement(t *testing.T) {
	e := NewEditor()
	require.NoError(t, e.UpdateField(0, domain.FieldName, "only"))

	require.NoError(t, e.RemoveRow(0))

	assert.Equal(t, []domain.Row{{}}, e.Rows())
}

func TestEditorIndexErrors(t *testing.T) {
	e := NewEditor()

	tests := []struct {
		name string
		run  func() error
	}{
		{"remove negative", func() error { return e.RemoveRow(-1) }},
		{"remove past end", func() error { return e.RemoveRow(1) }},
		{"update past end", func() error { return e.UpdateField(3, domain.FieldName, "x") }},
		{"unknown field", func() error { return e.UpdateField(0, domain.RowField("value3"), "x") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
		})
	}
	assert.Equal(t, 1, e.Len())
}

func TestEditorRowsReturnsCopy(t *testing.T) {
	e := NewEditor()
	rows := e.Rows()
	rows[0].Name = "mutated"
	assert.Empty(t, e.Rows()[0].Name)
}

func TestEditorReset(t *testing.T) {
	e := NewEditor()
	e.AddRow()
	require.NoError(t, e.UpdateField(1, domain.FieldName, "x"))

	e.Reset()

	assert.Equal(t, []domain.Row{{}}, e.Rows())
}

func TestFilterRows(t *testing.T) {
	rows := []domain.Row{
		{Name: "a", Value1: "1"},
		{Name: "", Value1: "2", Value2: "3"},
		{Name: "   ", Value1: "2"},
		{Name: "b", Value1: "", Value2: ""},
		{Name: " c ", Value2: "x"},
		{Name: "d", Value1: " ", Value2: "\t"},
	}

	got := FilterRows(rows)

	assert.Equal(t, []domain.Row{
		{Name: "a", Value1: "1"},
		{Name: "c", Value2: "x"},
	}, got)
}
