package devengine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tidwall/gjson"

	"dataflow/internal/config"
	apperrors "dataflow/internal/errors"
	"dataflow/pkg/contracts/domain"
)

// MaxRequestBytes caps every request body
const MaxRequestBytes = 50 << 20

// errNotSupported answers the conversion endpoints
var errNotSupported = errors.New("not supported")

// analyzeResponse is the success envelope of /api/analyze
type analyzeResponse struct {
	Success     bool                           `json:"success"`
	Stats       map[string]summary             `json:"stats"`
	Correlation map[string]map[string]*float64 `json:"correlation"`
	Charts      map[string]string              `json:"charts"`
	Columns     []string                       `json:"columns"`
	Shape       [2]int                         `json:"shape"`
}

// Server serves the engine endpoints
type Server struct {
	cfg      config.DevEngineConfig
	renderer renderer
	errors   *apperrors.ErrorHandler
	logger   *slog.Logger
}

// NewServer creates a new reference engine
func NewServer(cfg config.DevEngineConfig, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		renderer: renderer{width: cfg.ChartWidth, height: cfg.ChartHeight},
		errors:   apperrors.NewErrorHandler(logger, false),
		logger:   logger.With(slog.String("component", "devengine")),
	}
}

// Routes returns the engine router
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(apperrors.NewErrorMiddleware(s.errors, s.logger).Handler)
	r.Use(limitBody)
	r.NotFound(s.errors.NotFound)
	r.MethodNotAllowed(s.errors.MethodNotAllowed)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Post("/api/analyze", s.Analyze)
	r.Post("/api/smooth", s.Smooth)
	for _, kind := range domain.ConversionKinds() {
		spec, _ := domain.SpecFor(kind)
		r.Post(spec.Endpoint, s.unsupported)
	}
	return r
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
		next.ServeHTTP(w, r)
	})
}

// failure writes the engine failure envelope. The engine reports its own
// errors in the body with a 200 status.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.WarnContext(r.Context(), "request failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())))
	render.JSON(w, r, domain.TransformResponse{Success: false, Error: err.Error()})
}

// Analyze summarizes an uploaded file or a JSON list of records
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	f, source, err := s.readDataset(r)
	if err != nil {
		s.failure(w, r, "analyze", err)
		return
	}
	if f.len() > s.cfg.MaxRows {
		s.failure(w, r, "analyze", fmt.Errorf("dataset has %d rows, the limit is %d", f.len(), s.cfg.MaxRows))
		return
	}

	charts, failed := s.renderer.charts(f)
	for key, err := range failed {
		s.logger.WarnContext(r.Context(), "chart skipped",
			slog.String("chart", key),
			slog.String("error", err.Error()))
	}

	columns := f.columns
	if columns == nil {
		columns = []string{}
	}
	s.logger.InfoContext(r.Context(), "dataset analyzed",
		slog.String("source", source),
		slog.Int("rows", f.len()),
		slog.Int("columns", len(columns)),
		slog.Int("charts", len(charts)))

	render.JSON(w, r, analyzeResponse{
		Success:     true,
		Stats:       describe(f),
		Correlation: correlate(f),
		Charts:      charts,
		Columns:     columns,
		Shape:       [2]int{f.len(), len(columns)},
	})
}

func (s *Server) readDataset(r *http.Request) (*frame, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		if err != nil {
			return nil, "", fmt.Errorf("'file': %w", err)
		}
		defer file.Close()

		if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
			f, err := readXLSX(file)
			return f, header.Filename, err
		}
		f, err := readCSV(file)
		return f, header.Filename, err
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	data, err := jsonField(body, "data")
	if err != nil {
		return nil, "", err
	}
	f, err := readRecords(data)
	return f, "records", err
}

func jsonField(body []byte, key string) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("request body is not valid JSON")
	}
	field := gjson.GetBytes(body, key)
	if !field.Exists() {
		return gjson.Result{}, fmt.Errorf("'%s'", key)
	}
	return field, nil
}

// Smooth adds a <column>_smoothed column to the posted records
func (s *Server) Smooth(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.failure(w, r, "smooth", err)
		return
	}
	data, err := jsonField(body, "data")
	if err != nil {
		s.failure(w, r, "smooth", err)
		return
	}
	column, err := jsonField(body, "column")
	if err != nil {
		s.failure(w, r, "smooth", err)
		return
	}

	method := domain.SmoothMovingAverage
	if m := gjson.GetBytes(body, "method"); m.Exists() {
		method = m.String()
	}
	window := domain.DefaultSmoothingWindow
	if win := gjson.GetBytes(body, "window"); win.Exists() {
		window = int(win.Int())
	}

	// A null dataset is an empty frame, so every column lookup fails
	f := &frame{}
	if data.Type != gjson.Null {
		if f, err = readRecords(data); err != nil {
			s.failure(w, r, "smooth", err)
			return
		}
	}

	values, err := f.column(column.String())
	if err != nil {
		s.failure(w, r, "smooth", err)
		return
	}
	smoothed, err := smooth(values, method, window)
	if err != nil {
		s.failure(w, r, "smooth", err)
		return
	}

	records := f.records()
	key := column.String() + "_smoothed"
	for i, v := range smoothed {
		records[i][key] = finite(v)
	}

	s.logger.InfoContext(r.Context(), "column smoothed",
		slog.String("column", column.String()),
		slog.String("method", method),
		slog.Int("window", window),
		slog.Int("rows", len(records)))

	render.JSON(w, r, domain.TransformResponse{Success: true, Data: records})
}

func (s *Server) unsupported(w http.ResponseWriter, r *http.Request) {
	s.failure(w, r, "convert", errNotSupported)
}
