package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"dataflow/internal/config"
	"dataflow/internal/engine"
	apperrors "dataflow/internal/errors"
	"dataflow/internal/infrastructure"
	customMiddleware "dataflow/internal/middleware"
	"dataflow/internal/notify"
	"dataflow/internal/services"
	handlers "dataflow/internal/transport/http"
	ws "dataflow/internal/websocket"
	"dataflow/internal/workbench"
	"dataflow/pkg/contracts"
)

// AppName is shown in startup logs
const AppName = "DataFlow Workbench"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.WorkbenchMetrics
	WebSocketHub  *ws.Hub
	Engine        *engine.Client
	Sessions      *services.SessionRegistry
	HealthService *services.HealthService
}

// NewApplication wires every component of the workbench server
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("engine_url", cfg.Engine.BaseURL))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(infrastructure.ServiceName, cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateWorkbenchMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create workbench metrics: %w", err)
	}
	a.Metrics = metrics

	hubMetrics, err := ws.NewHubMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, hubMetrics)

	a.Engine = engine.NewClient(a.Config.Engine, a.Logger,
		engine.WithMetrics(metrics),
		engine.WithTracer(a.OTelProviders.Tracer))

	a.Sessions = services.NewSessionRegistry(a.Config.Session, a.newWorkbench, a.Logger, metrics)
	a.HealthService = services.NewHealthService(a.Sessions, a.WebSocketHub, a.Config.Engine.BaseURL, a.Logger)
	return nil
}

// newWorkbench builds the workbench of one page session. Its notifications
// are logged and pushed to the page's stream.
func (a *Application) newWorkbench(id string) *workbench.Workbench {
	return workbench.New(id, a.Engine, workbench.Options{
		MaxUploadBytes: a.Config.Engine.MaxUploadBytes,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		Sinks: []notify.Notifier{
			notify.NewLogSink(a.Logger),
			a.WebSocketHub.Notifier(id),
		},
		OnStateChange: a.WebSocketHub.StateListener(),
		OnJobChange:   a.WebSocketHub.JobListener(id),
	})
}

// setupRouter configures the HTTP router with all routes. Middleware order:
// RequestID, RealIP, OTel, Logger, Recoverer, SecurityHeaders, rate limit.
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.OTelProviders.Meter, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	if rl := a.Config.Server.RateLimit; rl.Enabled && rl.RPS > 0 {
		r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
	}

	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	pages, err := handlers.NewPages()
	if err != nil {
		return err
	}
	validator := customMiddleware.NewValidator(a.Logger)

	stream := handlers.NewStreamHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Server.AllowedOrigins, a.Logger)
	sessionHandler := handlers.NewSessionHandler(
		a.Sessions,
		pages,
		validator,
		errorHandler,
		a.Config.Engine.MaxUploadBytes,
		stream,
		a.Logger,
	)
	sessionHandler.RegisterRoutes(r)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/sessions", sessionHandler.CreateSession)

		clientLog := handlers.NewClientLogHandler(validator, errorHandler, a.Logger)
		r.With(customMiddleware.ContentTypeValidator(errorHandler, "application/json")).
			Post("/logs", clientLog.Handle)

		r.Mount("/", handlers.NewHealthHandler(a.HealthService, a.Logger).Routes())
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", handlers.NewMetricsHandler(prometheus.DefaultGatherer))
	}

	a.Router = r
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start listens on the configured address and serves until ctx is done
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the server on ln together with the websocket hub and the
// session sweeper. It returns after a graceful shutdown once ctx is done,
// or as soon as one of them fails.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "Starting HTTP server",
			slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.WebSocketHub.Run(gctx)
	})
	g.Go(func() error {
		return a.Sessions.RunSweeper(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(gctx))
	})

	return g.Wait()
}

// Stop gracefully stops the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.WarnContext(ctx, "OpenTelemetry shutdown failed",
				slog.String("error", err.Error()))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.InfoContext(ctx, "Application stopped")
	return nil
}

// Run starts the application and blocks until SIGINT or SIGTERM
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Start(ctx)
}
