package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"rentroll/internal/ai"
	"rentroll/internal/config"
	"rentroll/internal/exporter"
	"rentroll/internal/infrastructure"
	customMiddleware "rentroll/internal/middleware"
	"rentroll/internal/operations"
	"rentroll/internal/rentroll"
	"rentroll/internal/services"
	"rentroll/internal/storage"
	handlers "rentroll/internal/transport/http"
	ws "rentroll/internal/websocket"
)

const (
	Version = "1.0.0"
	AppName = "Rent Roll Processor"
)

// Build metadata, set at link time via -ldflags.
var (
	BuildTime = ""
	BuildID   = ""
)

// jobWorkers is the size of the background processing pool. Workbook
// processing is CPU and memory bound, so the pool stays small.
const jobWorkers = 2

// Application is the dependency container for the HTTP service.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebSocketHub  *ws.Hub
	Manager       *operations.Manager
	JobQueue      *operations.JobQueue
	Storage       storage.ObjectStore
	Processing    *services.ProcessingService
	Health        *services.HealthService

	queueCancel context.CancelFunc
}

// NewApplication builds the full application from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution()

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := a.initializeServices(); err != nil {
		return nil, err
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices wires the processing engine, pipeline and services.
func (a *Application) initializeServices() error {
	a.WebSocketHub = ws.NewHub(a.Logger)

	var completer rentroll.Completer
	if a.Config.AI.Enabled() {
		completer = ai.NewClient(a.Config.AI, a.Logger)
		a.Logger.Info("AI column mapping enabled", slog.String("model", a.Config.AI.Model))
	} else {
		a.Logger.Info("AI column mapping disabled, using rule-based mapping only")
	}

	if a.Config.Storage.Enabled() {
		client, err := storage.NewClient(a.Config.Storage, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize object storage: %w", err)
		}
		a.Storage = client
		a.Logger.Info("object storage enabled", slog.String("endpoint", a.Config.Storage.Endpoint))
	} else {
		a.Logger.Info("object storage disabled, outputs stay local")
	}

	processor := rentroll.NewProcessor(
		rentroll.PatternConfigFromSettings(a.Config.Processing),
		completer,
		a.Logger,
	)
	writer := exporter.NewCSVWriter(a.Paths)

	a.Manager = operations.NewManager(a.WebSocketHub, nil, nil, a.Logger)
	if err := operations.RegisterRentRollSteps(a.Manager, processor, writer, a.Storage, a.Logger); err != nil {
		return fmt.Errorf("failed to register pipeline steps: %w", err)
	}

	a.JobQueue = operations.NewJobQueue(jobWorkers, operations.NewMemoryJobStore(), a.Manager, a.Logger)

	a.Processing = services.NewProcessingService(a.Manager, a.JobQueue, a.Paths, a.Logger)
	a.Health = services.NewHealthService(Version, a.Paths, a.Manager, a.JobQueue, a.WebSocketHub, a.Storage, a.Logger).
		WithBuildInfo(BuildTime, BuildID)

	return nil
}

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that never wraps the ResponseWriter goes ahead of the
	// websocket route, or the upgrade hijack fails.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		businessMetrics, _ := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
		r.Use(customMiddleware.BusinessMetricsMiddleware(businessMetrics))

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.corsConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures the API endpoints.
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
	processHandler := handlers.NewProcessHandler(a.Processing, a.Paths, a.Logger)
	operationsHandler := handlers.NewOperationsHandler(a.Processing, a.Logger)
	resultsHandler := handlers.NewResultsHandler(a.Processing, a.Logger)

	r.Get("/", healthHandler.Root)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Standard timeout for quick lookups.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/version", healthHandler.Version)
			r.Get("/stats", healthHandler.Stats)

			r.Get("/process/jobs", processHandler.ListJobs)
			r.Get("/process/jobs/{id}", processHandler.GetJob)
			r.Delete("/process/jobs/{id}", processHandler.CancelJob)

			r.Get("/operations", operationsHandler.List)
			r.Get("/operations/{id}/status", operationsHandler.Status)
			r.Post("/operations/{id}/stop", operationsHandler.Stop)

			r.Get("/results", resultsHandler.List)
			r.Get("/results/{name}/download", resultsHandler.Download)
		})

		// Processing routes run the whole pipeline inside the request, so
		// they carry the long operation timeout and the upload size cap.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))
			r.Use(customMiddleware.MaxBytes(a.Config.Server.MaxUploadBytes))
			r.Use(customMiddleware.ContentTypeValidator("multipart/form-data"))

			r.Post("/process", processHandler.Process)
			r.Post("/process/async", processHandler.ProcessAsync)
		})
	})
}

// corsConfig builds the CORS configuration from security settings.
func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins:   a.Config.Security.AllowedOrigins,
		AllowCredentials: true,
		Logger:           a.Logger,
	}
}

// createServer builds the HTTP server bound to all interfaces.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf("0.0.0.0:%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.OperationTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and the HTTP listener.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("address", a.Server.Addr),
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("output_dir", a.Paths.OutputDir))

	go a.WebSocketHub.Run()

	queueCtx, queueCancel := context.WithCancel(context.Background())
	a.queueCancel = queueCancel
	a.JobQueue.Start(queueCtx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.JobQueue.Stop(30 * time.Second); err != nil {
		a.Logger.ErrorContext(ctx, "failed to stop job queue gracefully", slog.String("error", err.Error()))
	}
	if a.queueCancel != nil {
		a.queueCancel()
	}

	a.Processing.CancelAll(ctx)
	a.Manager.Broadcaster().Stop()
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

// handleWebSocket upgrades the connection and registers the client.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}
	ctx := infrastructure.WithTraceID(r.Context(), reqID)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range a.Config.Security.AllowedOrigins {
				if origin == allowed || allowed == "*" {
					return true
				}
			}
			a.Logger.WarnContext(ctx, "websocket origin not allowed", slog.String("origin", origin))
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "websocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	go client.WritePump()
	go client.ReadPump()
}
