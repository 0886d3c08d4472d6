package workbench

import (
	"fmt"
	"strings"
	"sync"

	"dataflow/pkg/contracts/domain"
)

// Tab is one of the mutually exclusive result projections
type Tab string

const (
	TabStatistics     Tab = "statistics"
	TabVisualizations Tab = "visualizations"
	TabCorrelation    Tab = "correlation"
)

// Tabs lists every tab in display order
func Tabs() []Tab {
	return []Tab{TabStatistics, TabVisualizations, TabCorrelation}
}

// ParseTab converts a route parameter into a Tab
func ParseTab(s string) (Tab, error) {
	switch tab := Tab(strings.ToLower(strings.TrimSpace(s))); tab {
	case TabStatistics, TabVisualizations, TabCorrelation:
		return tab, nil
	default:
		return "", fmt.Errorf("unknown tab %q", s)
	}
}

// Section is a top-level area of the page
type Section string

const (
	SectionAnalytics Section = "analytics"
	SectionPDFTools  Section = "pdf-tools"
)

// ParseSection converts a request value into a Section
func ParseSection(s string) (Section, error) {
	switch section := Section(strings.ToLower(strings.TrimSpace(s))); section {
	case SectionAnalytics, SectionPDFTools:
		return section, nil
	default:
		return "", fmt.Errorf("unknown section %q", s)
	}
}

// Layout is the visibility state of the page panels
type Layout struct {
	Section        Section              `json:"section"`
	ManualVisible  bool                 `json:"manual_visible"`
	ToolsVisible   bool                 `json:"tools_visible"`
	ResultsVisible bool                 `json:"results_visible"`
	Busy           bool                 `json:"busy"`
	ActiveTab      Tab                  `json:"active_tab"`
	Dialog         domain.TransformKind `json:"dialog,omitempty"`
}

// Snapshot is an immutable copy of the session state
type Snapshot struct {
	ID         string
	Dataset    domain.Dataset
	Result     *domain.AnalysisResult
	Generation uint64
	Layout     Layout
}

// Mode returns the input mode of the active dataset
func (s Snapshot) Mode() domain.InputMode {
	if s.Dataset.Mode == "" {
		return domain.InputModeNone
	}
	return s.Dataset.Mode
}

// HasResult reports whether an analysis has succeeded in this session
func (s Snapshot) HasResult() bool {
	return s.Result != nil
}

// Session holds the single source of truth of one page: the active dataset,
// the last analysis result and the generation counter that orders requests.
// The result is non-nil only after a successful analysis.
type Session struct {
	mu         sync.RWMutex
	id         string
	dataset    domain.Dataset
	result     *domain.AnalysisResult
	generation uint64
	layout     Layout
}

// NewSession creates a new empty Session
func NewSession(id string) *Session {
	return &Session{
		id:      id,
		dataset: domain.Dataset{Mode: domain.InputModeNone},
		layout: Layout{
			Section:   SectionAnalytics,
			ActiveTab: TabStatistics,
		},
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a deep copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dataset := s.dataset
	dataset.Rows = append([]domain.Row(nil), s.dataset.Rows...)
	if s.dataset.File != nil {
		file := *s.dataset.File
		dataset.File = &file
	}

	return Snapshot{
		ID:         s.id,
		Dataset:    dataset,
		Result:     s.result.Clone(),
		Generation: s.generation,
		Layout:     s.layout,
	}
}

// Generation returns the current generation
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// begin starts a new generation and returns it. Responses tagged with an
// older generation are stale from now on.
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation == gen
}

// commit atomically installs a successful analysis if gen is still current
func (s *Session) commit(gen uint64, dataset domain.Dataset, result *domain.AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.dataset = dataset
	s.result = result
	s.layout.ToolsVisible = true
	s.layout.ResultsVisible = true
	s.layout.ActiveTab = TabStatistics
	return true
}

// updateLayout applies fn to the layout under the write lock
func (s *Session) updateLayout(fn func(*Layout)) Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.layout)
	return s.layout
}

// Layout returns the current layout
func (s *Session) Layout() Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout
}
