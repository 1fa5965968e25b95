package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/jthoms1/the-collector/internal/database"
	"github.com/jthoms1/the-collector/internal/filesystem"
	"github.com/jthoms1/the-collector/internal/handlers"
	"github.com/jthoms1/the-collector/internal/ingest"
	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/memory"
	"github.com/jthoms1/the-collector/internal/metrics"
	"github.com/jthoms1/the-collector/internal/middleware"
	"github.com/jthoms1/the-collector/internal/startup"
	"github.com/jthoms1/the-collector/internal/workers"
)

const shutdownTimeout = 30 * time.Second

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ApplyLimit(config.MemoryLimit, config.MemoryRatio)

	metrics.InitializeMetrics(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	ctx := context.Background()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	if config.MigrateLegacy {
		migrateStart := time.Now()
		result, err := db.MigrateLegacyImages(ctx)
		if err != nil {
			startup.LogFatal("Legacy image migration failed: %v", err)
		}
		startup.LogLegacyMigration(result, time.Since(migrateStart))
	}

	backend, err := media.BackendFor(config.DeriveBackend)
	if err != nil {
		startup.LogFatal("Failed to initialize %s backend: %v", config.DeriveBackend, err)
	}
	engine := media.NewEngine(backend)
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	pool := workers.NewPool(config.DeriveWorkers, metrics.DeriveWorkersBusy)
	pool.SetGate(monitor)
	metrics.DeriveWorkersCapacity.Set(float64(pool.Size()))
	startup.LogDerivationInit(engine.BackendName(), pool.Size())

	svc := ingest.NewService(engine, pool, config.ContentDir, config.MaxUploadBytes)
	h := handlers.New(db, svc, config)

	router := newRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	collector := metrics.NewCollector(db, config.MetricsInterval)
	collector.Start()

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(h, config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapHandler(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.RequestTimeout,
		WriteTimeout:      config.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(srv, metricsSrv, collector, monitor, db)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// newRouter registers the application routes. Route-aware middleware is
// attached here so it can read the matched path template.
func newRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	return r
}

// wrapHandler applies the outer middleware chain:
// request id, then access logging, then compression.
func wrapHandler(router http.Handler, config *startup.Config) http.Handler {
	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	logged := middleware.Logger(loggingConfig)(compressed)

	return middleware.RequestID(logged)
}

func newMetricsServer(h *handlers.Handlers, port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)
	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, monitor *memory.Monitor, db *database.Database) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	// In-flight derivations finished with the HTTP server.
	media.ShutdownVips()

	startup.LogShutdownStep("Closing database")
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
