package workbench

import (
	"sync"

	apperrors "dataflow/internal/errors"
	"dataflow/pkg/contracts/domain"
)

// Selector binds a file input to a single "file(s) selected" event. It only
// remembers the selection; what happens next belongs to its owner.
type Selector struct {
	mu       sync.RWMutex
	maxBytes int64
	multiple bool
	files    []domain.Upload
	onSelect func([]domain.Upload)
}

// NewSelector creates a new Selector. maxBytes <= 0 disables the size check.
func NewSelector(maxBytes int64, multiple bool) *Selector {
	return &Selector{maxBytes: maxBytes, multiple: multiple}
}

// OnSelect registers a callback fired after every accepted selection
func (s *Selector) OnSelect(fn func([]domain.Upload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSelect = fn
}

// Select replaces the selection. An empty list clears it. A rejected
// selection leaves the previous one untouched.
func (s *Selector) Select(files []domain.Upload) error {
	if !s.multiple && len(files) > 1 {
		return apperrors.InvalidInputf("only one file can be selected, got %d", len(files))
	}
	for _, f := range files {
		if s.maxBytes > 0 && int64(f.Size()) > s.maxBytes {
			return apperrors.InvalidInputf("file %q is %d bytes, the limit is %d", f.Name, f.Size(), s.maxBytes)
		}
		if f.Name == "" {
			return apperrors.InvalidInput("file name is required")
		}
	}

	s.mu.Lock()
	s.files = append([]domain.Upload(nil), files...)
	fn := s.onSelect
	s.mu.Unlock()

	if fn != nil {
		fn(append([]domain.Upload(nil), files...))
	}
	return nil
}

// Files returns the current selection
func (s *Selector) Files() []domain.Upload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Upload(nil), s.files...)
}

// First returns the first selected file
func (s *Selector) First() (domain.Upload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.files) == 0 {
		return domain.Upload{}, false
	}
	return s.files[0], true
}

// Names returns the selected file names in order
func (s *Selector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.files))
	for i, f := range s.files {
		names[i] = f.Name
	}
	return names
}

// Clear drops the selection
func (s *Selector) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}
