package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-curator/internal/catalog"
	"media-curator/internal/database"
	"media-curator/internal/filesystem"
	"media-curator/internal/handlers"
	"media-curator/internal/indexer"
	"media-curator/internal/logging"
	"media-curator/internal/memory"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
	"media-curator/internal/middleware"
	"media-curator/internal/startup"

	"github.com/gorilla/mux"
)

const (
	sinkBuffer         = 32
	statsCollectPeriod = time.Minute
)

func main() {
	startTime := time.Now()

	// Size the heap before anything large is allocated
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaRoot,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	classifier, err := loadClassifier(config.MediaTypesFile)
	if err != nil {
		startup.LogFatal("Media types error: %v", err)
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	collector := metrics.NewCollector(db, statsCollectPeriod)
	collector.Start()

	// Initialize indexing controller
	startup.LogIndexerInit(config.Processor, config.Exclude)
	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	ctrl, err := indexer.New(indexer.Config{
		Processor:  config.Processor,
		Retry:      filesystem.DefaultRetryConfig(),
		Classifier: classifier,
		Exclude:    config.Exclude,
		Memory:     memMonitor,
	})
	if err != nil {
		startup.LogFatal("Failed to create indexing controller: %v", err)
	}

	hub := indexer.NewHub()
	sinkEvents, _ := hub.Subscribe(sinkBuffer)

	ctrlCtx, stopController := context.WithCancel(context.Background())
	go memMonitor.Run(ctrlCtx)
	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		ctrl.Run(ctrlCtx)
	}()
	go hub.Run(ctrl.Events())

	// The controller never drops terminal events and the sink drains until the
	// hub closes its subscription, so the final Cancelled event of a shutdown
	// is still written.
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		catalog.New(db).Run(context.Background(), sinkEvents)
	}()
	startup.LogIndexerStarted()

	// Initialize handlers
	h := handlers.New(db, ctrl, hub)
	if config.CacheWritable {
		h.SetDefaultCacheDir(config.CacheDir)
	}

	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	// WriteTimeout stays 0: the event stream is long-lived.
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		handleShutdown(srv, shutdownSteps{
			stopController: stopController,
			controllerDone: ctrlDone,
			sinkDone:       sinkDone,
			collector:      collector,
			timeout:        config.ShutdownTimeout,
		})
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	<-shutdownDone
}

func loadClassifier(path string) (*mediatypes.Classifier, error) {
	if path == "" {
		c := mediatypes.Default()
		startup.LogMediaTypes("built-in", len(c.Video), len(c.Photo))
		return c, nil
	}
	c, err := mediatypes.LoadFile(path)
	if err != nil {
		return nil, err
	}
	startup.LogMediaTypes(path, len(c.Video), len(c.Photo))
	return c, nil
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	// Indexing control. Registered on the root router with full paths so a
	// method mismatch answers 405; a subrouter falls through to 404.
	r.HandleFunc("/api/index/start", h.StartIndexing).Methods(http.MethodPost)
	r.HandleFunc("/api/index/pause", h.PauseIndexing).Methods(http.MethodPost)
	r.HandleFunc("/api/index/resume", h.ResumeIndexing).Methods(http.MethodPost)
	r.HandleFunc("/api/index/cancel", h.CancelIndexing).Methods(http.MethodPost)
	r.HandleFunc("/api/index/commands", h.SendCommand).Methods(http.MethodPost)
	r.HandleFunc("/api/index/status", h.IndexStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/index/events", h.IndexEvents).Methods(http.MethodGet)

	// Catalog
	r.HandleFunc("/api/assets", h.ListAssets).Methods(http.MethodGet)
	r.HandleFunc("/api/assets/{id}", h.GetAsset).Methods(http.MethodGet)

	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	return r
}

type shutdownSteps struct {
	stopController context.CancelFunc
	controllerDone <-chan struct{}
	sinkDone       <-chan struct{}
	collector      *metrics.Collector
	timeout        time.Duration
}

func handleShutdown(srv *http.Server, steps shutdownSteps) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), steps.timeout)
	defer cancel()

	startup.LogShutdownStep("Stopping metrics collector")
	steps.collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Cancelling indexing session")
	steps.stopController()
	if waitFor(ctx, steps.controllerDone) {
		startup.LogShutdownStepComplete("Indexing controller stopped")
	} else {
		logging.Warn("Indexing controller did not stop within %v", steps.timeout)
	}

	startup.LogShutdownStep("Flushing catalog writes")
	if waitFor(ctx, steps.sinkDone) {
		startup.LogShutdownStepComplete("Catalog writes flushed")
	} else {
		logging.Warn("Catalog sink did not finish within %v", steps.timeout)
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}

func waitFor(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
