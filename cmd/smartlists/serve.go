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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"smartlists/internal/database"
	"smartlists/internal/definitions"
	"smartlists/internal/filesystem"
	"smartlists/internal/handlers"
	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/memory"
	"smartlists/internal/metrics"
	"smartlists/internal/middleware"
	"smartlists/internal/playlist"
	"smartlists/internal/refresh"
	"smartlists/internal/startup"
	"smartlists/internal/watcher"
)

const (
	metricsCollectInterval = time.Minute
	shutdownTimeout        = 30 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the smart list service (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	startTime := time.Now()
	if parent == nil {
		parent = context.Background()
	}

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Error("Configuration error: %v", err)
		return err
	}

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"lists":    config.ListsDir,
		"export":   config.ExportDir,
		"database": config.DatabaseDir,
	}))

	memResult := memory.Configure(config.MemoryLimit, config.MemoryRatio)
	memConfig := memory.DefaultConfig()
	memConfig.LimitBytes = memResult.GoMemLimit
	monitor := memory.NewMonitor(memConfig)
	monitor.Start()

	dbStart := time.Now()
	db, err := database.New(parent, config.DatabasePath)
	if err != nil {
		logging.Error("Failed to initialize database: %v", err)
		monitor.Stop()
		return err
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	defs := definitions.NewStore(config.ListsDir)
	users := library.NewUserCache(db)

	var materializer library.Materializer = db
	var exporter *playlist.Exporter
	if config.ExportEnabled {
		exporter = playlist.NewExporter(db, db, config.ExportDir)
		materializer = exporter
	}

	orch := refresh.New(refresh.Options{
		Store:        defs,
		Catalog:      db,
		Users:        users,
		Materializer: materializer,
		Gate:         monitor,
		Config: refresh.Config{
			Workers:            config.RefreshWorkers,
			MaxConcurrentLists: config.MaxConcurrentLists,
			Debounce:           config.DebounceWindow,
			Affixes:            config.Affixes(),
			Location:           config.Location,
		},
	})
	startup.LogOrchestratorInit(orch.Workers(), config.MaxConcurrentLists, config.DebounceWindow)

	if err := orch.Reload(parent); err != nil {
		logging.Error("Failed to load list definitions: %v", err)
		monitor.Stop()
		_ = db.Close()
		return err
	}
	enabled := 0
	lists := orch.Lists()
	for _, l := range lists {
		if l.Enabled {
			enabled++
		}
	}
	startup.LogDefinitionsInit(config.ListsDir, enabled, len(lists)-enabled, len(defs.Problems()))

	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		orch.Run(runCtx)
	}()

	w := watcher.New(db, orch, orch)
	w.SetPollInterval(config.ChangePollInterval)
	w.SetReloadInterval(config.DefinitionsReloadInterval)
	w.Start()
	startup.LogWatcherStarted(config.ChangePollInterval, config.DefinitionsReloadInterval)

	collector := metrics.NewCollector(db, metricsCollectInterval)
	collector.Start()

	deps := handlers.Deps{Refresher: orch, Problems: defs, Watcher: w}
	if exporter != nil {
		deps.Exports = exporter
	}
	h := handlers.New(deps)
	h.SetReady(true)

	router := mux.NewRouter()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = router
	handler = middleware.BearerAuth(middleware.DefaultAuthConfig(config.APITokenHash))(handler)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	serveErr := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case <-parent.Done():
		startup.LogShutdownInitiated("context cancellation")
	case runErr = <-serveErr:
		logging.Error("Server error: %v", runErr)
		startup.LogShutdownInitiated("server error")
	}

	shutdown(shutdownTargets{
		srv:        srv,
		metricsSrv: metricsSrv,
		watcher:    w,
		collector:  collector,
		monitor:    monitor,
		stopRun:    stopRun,
		runDone:    runDone,
		db:         db,
	})
	return runErr
}

type shutdownTargets struct {
	srv        *http.Server
	metricsSrv *http.Server
	watcher    *watcher.Watcher
	collector  *metrics.Collector
	monitor    *memory.Monitor
	stopRun    context.CancelFunc
	runDone    <-chan struct{}
	db         *database.Database
}

func shutdown(t shutdownTargets) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := t.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	if t.metricsSrv != nil {
		if err := t.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Stopping change watcher")
	t.watcher.Stop()
	startup.LogShutdownStepComplete("Change watcher stopped")

	t.collector.Stop()

	startup.LogShutdownStep("Waiting for running refreshes")
	t.stopRun()
	select {
	case <-t.runDone:
		startup.LogShutdownStepComplete("Refresh orchestrator stopped")
	case <-ctx.Done():
		logging.Warn("Timed out waiting for running refreshes")
	}
	t.monitor.Stop()

	startup.LogShutdownStep("Closing database")
	if err := t.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
