package workbench

import (
	"strings"
	"sync"

	apperrors "dataflow/internal/errors"
	"dataflow/pkg/contracts/domain"
)

// Editor is the manual data editor: an ordered, mutable collection of rows.
// At least one row always exists; removing the last row replaces it with a
// fresh empty one.
type Editor struct {
	mu   sync.RWMutex
	rows []domain.Row
}

// NewEditor creates an editor holding one empty row
func NewEditor() *Editor {
	return &Editor{rows: []domain.Row{{}}}
}

// AddRow appends one empty row and returns the new row count
func (e *Editor) AddRow() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append(e.rows, domain.Row{})
	return len(e.rows)
}

// RemoveRow deletes the row at index, keeping the order of the others
func (e *Editor) RemoveRow(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.rows) {
		return apperrors.InvalidInputf("row %d does not exist", index)
	}
	e.rows = append(e.rows[:index], e.rows[index+1:]...)
	if len(e.rows) == 0 {
		e.rows = []domain.Row{{}}
	}
	return nil
}

// UpdateField sets one cell in place
func (e *Editor) UpdateField(index int, field domain.RowField, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.rows) {
		return apperrors.InvalidInputf("row %d does not exist", index)
	}
	row := &e.rows[index]
	switch field {
	case domain.FieldName:
		row.Name = value
	case domain.FieldValue1:
		row.Value1 = value
	case domain.FieldValue2:
		row.Value2 = value
	default:
		return apperrors.InvalidInputf("unknown field %q", field)
	}
	return nil
}

// Rows returns a copy of the rows in display order
func (e *Editor) Rows() []domain.Row {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Row(nil), e.rows...)
}

// Len returns the number of rows
func (e *Editor) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rows)
}

// Reset reinitializes the editor to a single empty row
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = []domain.Row{{}}
}

// FilterRows drops rows with an empty name and rows whose values are both
// empty. Surviving rows keep their order and their raw text.
func FilterRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		if r.IsBlank() {
			continue
		}
		r.Name = strings.TrimSpace(r.Name)
		out = append(out, r)
	}
	return out
}
