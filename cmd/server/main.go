package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowscope/internal/config"
	"flowscope/internal/datasource"
	"flowscope/internal/geo"
	"flowscope/internal/handler"
	"flowscope/internal/hub"
	"flowscope/internal/repository/sqlite"
	"flowscope/internal/service"
	"flowscope/internal/view"
	"flowscope/internal/watcher"
)

// frameInterval drives the force simulation and marker-dot animation when
// no browser is connected to do it; roughly 30 fps.
const frameInterval = 33 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flowscope: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// Load configuration
	var (
		cfg     *config.Config
		cfgPath string
		err     error
	)
	if *configPath != "" {
		cfg, cfgPath, err = config.LoadFromPath(*configPath)
	} else {
		cfg, cfgPath, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Set up logging
	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Logging.Level))
	logger, closeLog := config.SetupLogger(cfg.Logging.File, logLevel)
	defer closeLog()
	slog.SetDefault(logger)
	logger.Info("starting flowscope", "addr", cfg.Server.Addr, "config", cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transaction store
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	logger.Info("database opened", "path", cfg.Database.Path)

	// Event bus and SSE hub
	eventBus := service.NewEventBus()
	sseHub := hub.New(logger)
	go sseHub.Run(ctx)
	go sseHub.Bridge(ctx, eventBus)

	// Services
	networkSvc := service.NewNetworkService(repo, eventBus, logger)
	resolver := geo.NewResolver(cfg.Geocoder, geo.NewMemoryCache(), logger)

	// The coordinator consumes either a remote data source or the embedded
	// service, depending on configuration.
	var source view.Source = networkSvc
	if cfg.Source.URL != "" {
		source = datasource.NewClient(cfg.Source, logger)
		logger.Info("using remote data source", "url", cfg.Source.URL)
	}
	coord := view.New(cfg, source, resolver, eventBus, logger)

	// Initial load; a cold store or unreachable source is not fatal, the
	// view starts empty and retries on demand.
	if err := coord.Reload(ctx); err != nil {
		logger.Warn("initial load failed", "error", err)
	}

	// Animation frames
	go func() {
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				coord.Advance(frameInterval.Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Config hot-reload adjusts log level and tuning knobs without restart
	if cfgPath != "" {
		w := watcher.New(cfgPath, func() {
			fresh, _, err := config.LoadFromPath(cfgPath)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				return
			}
			logLevel.Set(config.ParseLogLevel(fresh.Logging.Level))
			coord.UpdateTuning(fresh)
			logger.Info("config reloaded", "path", cfgPath)
		}, logger)
		go func() {
			if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	// HTTP handlers
	viewHandler := handler.NewViewHandler(coord, logger)
	apiHandler := handler.NewAPIHandler(networkSvc, resolver, logger)

	mux := http.NewServeMux()

	// Data source endpoints
	mux.HandleFunc("GET /api/network/data", apiHandler.GetNetworkData)
	mux.HandleFunc("POST /api/network/patterns", apiHandler.PatternAnalysis)
	mux.HandleFunc("GET /api/locations/{code}", apiHandler.GetLocation)
	mux.HandleFunc("POST /api/transactions/import", apiHandler.ImportTransactions)

	// Engine endpoints
	mux.HandleFunc("GET /api/view/scene", viewHandler.GetScene)
	mux.HandleFunc("GET /api/view/scene.svg", viewHandler.SceneSVG)
	mux.HandleFunc("GET /api/view/flows.geojson", viewHandler.FlowsGeoJSON)
	mux.HandleFunc("POST /api/view/reload", viewHandler.Reload)
	mux.HandleFunc("PUT /api/view/filters", viewHandler.SetFilters)
	mux.HandleFunc("PUT /api/view/target", viewHandler.SetTarget)
	mux.HandleFunc("PUT /api/view/layout", viewHandler.SetLayout)
	mux.HandleFunc("PUT /api/view/selection", viewHandler.SetSelectionModes)
	mux.HandleFunc("POST /api/view/select", viewHandler.Select)
	mux.HandleFunc("POST /api/view/focus", viewHandler.Focus)
	mux.HandleFunc("PUT /api/view/positions/{id}", viewHandler.SavePosition)
	mux.HandleFunc("DELETE /api/view/positions/{id}", viewHandler.ReleasePosition)

	// Events
	mux.Handle("GET /api/events", sseHub)

	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
