package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"dataflow/internal/workbench"
	"dataflow/pkg/contracts"
	"dataflow/pkg/contracts/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages renders the workbench page and its tab fragments
type Pages struct {
	templates *template.Template
}

// NewPages parses the embedded templates
func NewPages() (*Pages, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"chartSrc": chartSrc,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Pages{templates: tmpl}, nil
}

// PageData is the model of the full page
type PageData struct {
	Version     string
	SessionID   string
	State       StateResponse
	Tabs        []workbench.Tab
	View        workbench.View
	Conversions []JobResponse
	Dialog      domain.TransformKind
	Methods     []string
}

func newPageData(wb *workbench.Workbench) PageData {
	snap := wb.Snapshot()
	data := PageData{
		Version:   contracts.GetVersionString(),
		SessionID: wb.ID(),
		State:     stateOf(wb),
		Tabs:      workbench.Tabs(),
		View:      workbench.Render(snap, snap.Layout.ActiveTab),
		Dialog:    snap.Layout.Dialog,
		Methods:   []string{domain.SmoothMovingAverage, domain.SmoothExponential, domain.SmoothSavgol},
	}
	for _, kind := range domain.ConversionKinds() {
		if conv, ok := wb.Conversion(kind); ok {
			data.Conversions = append(data.Conversions, jobOf(conv.Job()))
		}
	}
	return data
}

// RenderPage writes the full page
func (p *Pages) RenderPage(w http.ResponseWriter, data PageData) error {
	return p.write(w, "page", data)
}

// RenderTab writes the fragment of one results tab
func (p *Pages) RenderTab(w http.ResponseWriter, view workbench.View) error {
	return p.write(w, "tab", view)
}

// write buffers the output so a template failure can still answer 500
func (p *Pages) write(w http.ResponseWriter, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return fmt.Errorf("execute %s template: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := io.Copy(w, &buf)
	return err
}

// chartSrc marks a chart source as a trusted URL. Render only keeps
// http(s) and data:image sources, which html/template would otherwise
// replace with a placeholder.
func chartSrc(src string) template.URL {
	return template.URL(src)
}
