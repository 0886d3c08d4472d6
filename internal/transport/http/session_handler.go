package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	"dataflow/internal/middleware"
	"dataflow/internal/workbench"
	api "dataflow/pkg/contracts/api/v1"
	"dataflow/pkg/contracts/domain"
)

type contextKey string

const (
	workbenchKey  contextKey = "workbench"
	conversionKey contextKey = "conversion"
)

// SessionStore resolves page sessions
type SessionStore interface {
	Create(ctx context.Context) *workbench.Workbench
	Get(ctx context.Context, id string) (*workbench.Workbench, error)
	Delete(ctx context.Context, id string) bool
}

// SessionHandler serves the page and every per-session action
type SessionHandler struct {
	sessions     SessionStore
	pages        *Pages
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	maxUpload    int64
	stream       http.Handler
	logger       *slog.Logger
}

// NewSessionHandler creates a new session handler. stream serves the
// notification websocket of a session and may be nil.
func NewSessionHandler(
	sessions SessionStore,
	pages *Pages,
	validator *middleware.Validator,
	errorHandler *apperrors.ErrorHandler,
	maxUpload int64,
	stream http.Handler,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		pages:        pages,
		validator:    validator,
		errorHandler: errorHandler,
		maxUpload:    maxUpload,
		stream:       stream,
		logger:       logger.With(slog.String("handler", "session")),
	}
}

// Routes returns a standalone router with the page routes and
// POST /api/sessions
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/api/sessions", h.CreateSession)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the page and the per-session routes to r
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.NewPage)

	r.Route("/s/{sid}", func(r chi.Router) {
		r.Use(h.SessionCtx)

		r.Get("/", h.Page)
		r.Delete("/", h.CloseSession)
		r.Get("/state", h.State)

		r.Post("/upload", h.Upload)
		r.Post("/analyze", h.Analyze)
		r.Get("/export", h.Export)
		r.Post("/navigate/{section}", h.Navigate)

		r.Post("/manual/toggle", h.ToggleManual)
		r.Post("/rows", h.AddRow)
		r.Delete("/rows/{index}", h.RemoveRow)
		r.Patch("/rows/{index}", h.UpdateRow)

		r.Get("/tabs/{tab}", h.Tab)
		r.Get("/view/{tab}", h.View)

		r.Post("/dialogs/{kind}", h.OpenDialog)
		r.Delete("/dialogs", h.CloseDialog)
		r.Post("/transform", h.Transform)

		r.Route("/convert/{kind}", func(r chi.Router) {
			r.Use(ConversionCtx)
			r.Get("/", h.Job)
			r.Post("/", h.Submit)
			r.Post("/select", h.SelectConversionFiles)
		})

		if h.stream != nil {
			r.Get("/ws", h.stream.ServeHTTP)
		}
	})
}

// SessionCtx resolves the {sid} parameter into the session workbench
func (h *SessionHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wb, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sid"))
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), workbenchKey, wb)
		ctx = infrastructure.WithSessionID(ctx, wb.ID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ConversionCtx resolves the {kind} parameter into its conversion job
func ConversionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, err := domain.ParseConversionKind(chi.URLParam(r, "kind"))
		if err != nil {
			render.Render(w, r, notFound(r, err.Error()))
			return
		}
		conv, ok := WorkbenchFromContext(r.Context()).Conversion(kind)
		if !ok {
			render.Render(w, r, notFound(r, "unknown conversion "+string(kind)))
			return
		}
		ctx := context.WithValue(r.Context(), conversionKey, conv)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WorkbenchFromContext returns the workbench resolved by SessionCtx
func WorkbenchFromContext(ctx context.Context) *workbench.Workbench {
	wb, _ := ctx.Value(workbenchKey).(*workbench.Workbench)
	return wb
}

func conversionFromContext(ctx context.Context) *workbench.Conversion {
	conv, _ := ctx.Value(conversionKey).(*workbench.Conversion)
	return conv
}

// NewPage handles GET / by starting a session
func (h *SessionHandler) NewPage(w http.ResponseWriter, r *http.Request) {
	wb := h.sessions.Create(r.Context())
	h.renderPage(w, r, wb)
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	wb := h.sessions.Create(r.Context())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.SessionResponse{
		SessionID: wb.ID(),
		URL:       "/s/" + wb.ID(),
	})
}

// Page handles GET /s/{sid}
func (h *SessionHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, WorkbenchFromContext(r.Context()))
}

// CloseSession handles DELETE /s/{sid}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(r.Context(), WorkbenchFromContext(r.Context()).ID())
	w.WriteHeader(http.StatusNoContent)
}

// State handles GET /s/{sid}/state
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, stateOf(WorkbenchFromContext(r.Context())))
}

// Upload handles POST /s/{sid}/upload
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	wb := WorkbenchFromContext(r.Context())

	uploads, err := readUploads(w, r, h.maxUpload, "file")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(uploads) == 0 {
		h.errorHandler.HandleError(w, r, apperrors.EmptyInput("Please select a file first"))
		return
	}
	if err := wb.SelectFile(r.Context(), uploads[0]); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stateOf(wb))
}

// Analyze handles POST /s/{sid}/analyze?mode=file|manual
func (h *SessionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	wb := WorkbenchFromContext(r.Context())

	query := api.AnalyzeQuery{Mode: r.URL.Query().Get("mode")}
	if err := h.validator.ValidateStruct(query); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	mode, err := domain.ParseInputMode(query.Mode)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}

	result, err := wb.Analyze(r.Context(), mode)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	snap := wb.Snapshot()
	render.JSON(w, r, AnalyzeResponse{
		State:  stateOf(wb),
		Result: result,
		View:   workbench.Render(snap, snap.Layout.ActiveTab),
	})
}

// Export handles GET /s/{sid}/export
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	download, err := WorkbenchFromContext(r.Context()).Export()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeAttachment(w, download)
}

// Navigate handles POST /s/{sid}/navigate/{section}
func (h *SessionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	section, err := workbench.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}
	render.JSON(w, r, WorkbenchFromContext(r.Context()).Navigate(r.Context(), section))
}

// ToggleManual handles POST /s/{sid}/manual/toggle
func (h *SessionHandler) ToggleManual(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, WorkbenchFromContext(r.Context()).ToggleManualEntry(r.Context()))
}

// AddRow handles POST /s/{sid}/rows
func (h *SessionHandler) AddRow(w http.ResponseWriter, r *http.Request) {
	editor := WorkbenchFromContext(r.Context()).Editor()
	count := editor.AddRow()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RowResponse{Index: count - 1, Rows: rowViews(editor.Rows())})
}

// RemoveRow handles DELETE /s/{sid}/rows/{index}
func (h *SessionHandler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	index, err := rowIndex(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	editor := WorkbenchFromContext(r.Context()).Editor()
	if err := editor.RemoveRow(index); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, RowResponse{Index: index, Rows: rowViews(editor.Rows())})
}

// UpdateRow handles PATCH /s/{sid}/rows/{index}
func (h *SessionHandler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	index, err := rowIndex(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	var req api.UpdateFieldRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	editor := WorkbenchFromContext(r.Context()).Editor()
	if err := editor.UpdateField(index, domain.RowField(req.Field), req.Value); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, RowResponse{Index: index, Rows: rowViews(editor.Rows())})
}

// Tab handles GET /s/{sid}/tabs/{tab} and answers an HTML fragment
func (h *SessionHandler) Tab(w http.ResponseWriter, r *http.Request) {
	tab, err := workbench.ParseTab(chi.URLParam(r, "tab"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}
	view := WorkbenchFromContext(r.Context()).SelectTab(r.Context(), tab)
	if err := h.pages.RenderTab(w, view); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to render tab",
			slog.String("tab", string(tab)),
			slog.String("error", err.Error()))
	}
}

// View handles GET /s/{sid}/view/{tab} and answers the view model as JSON
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	tab, err := workbench.ParseTab(chi.URLParam(r, "tab"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}
	render.JSON(w, r, workbench.Render(WorkbenchFromContext(r.Context()).Snapshot(), tab))
}

// OpenDialog handles POST /s/{sid}/dialogs/{kind}
func (h *SessionHandler) OpenDialog(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseTransformKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}
	wb := WorkbenchFromContext(r.Context())
	if err := wb.OpenDialog(r.Context(), kind); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, wb.Snapshot().Layout)
}

// CloseDialog handles DELETE /s/{sid}/dialogs
func (h *SessionHandler) CloseDialog(w http.ResponseWriter, r *http.Request) {
	wb := WorkbenchFromContext(r.Context())
	wb.CloseDialog(r.Context())
	render.JSON(w, r, wb.Snapshot().Layout)
}

// Transform handles POST /s/{sid}/transform
func (h *SessionHandler) Transform(w http.ResponseWriter, r *http.Request) {
	var req api.TransformRequest
	if err := h.validator.DecodeJSON(w, r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	kind, err := domain.ParseTransformKind(req.Kind)
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}

	wb := WorkbenchFromContext(r.Context())
	if err := wb.ApplyTransformation(r.Context(), kind, req.Column, req.Method, req.Parameter); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stateOf(wb))
}

// Job handles GET /s/{sid}/convert/{kind}
func (h *SessionHandler) Job(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, jobOf(conversionFromContext(r.Context()).Job()))
}

// SelectConversionFiles handles POST /s/{sid}/convert/{kind}/select. A
// request without files clears the selection.
func (h *SessionHandler) SelectConversionFiles(w http.ResponseWriter, r *http.Request) {
	conv := conversionFromContext(r.Context())

	uploads, err := readUploads(w, r, h.maxUpload, "files", "file")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if err := conv.Select(r.Context(), uploads); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, jobOf(conv.Job()))
}

// Submit handles POST /s/{sid}/convert/{kind} and answers the converted file
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	download, err := conversionFromContext(r.Context()).Submit(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeAttachment(w, download)
}

func (h *SessionHandler) renderPage(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	if err := h.pages.RenderPage(w, newPageData(wb)); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to render page",
			slog.String("session_id", wb.ID()),
			slog.String("error", err.Error()))
	}
}

func rowIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.InvalidInputf("invalid row index %q", raw)
	}
	return index, nil
}

func notFound(r *http.Request, detail string) *apperrors.ProblemDetails {
	return apperrors.NewProblemDetails(
		http.StatusNotFound,
		apperrors.TypeNotFound,
		"Not Found",
		detail,
		r.URL.Path,
	)
}
