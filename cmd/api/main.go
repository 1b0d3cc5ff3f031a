package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-client/internal/api"
	"github.com/dvloznov/finance-client/internal/api/handlers"
	"github.com/dvloznov/finance-client/internal/app"
	"github.com/dvloznov/finance-client/internal/batchimport"
	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/jobs/inmemory"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/workflow"
)

const (
	// Import sessions untouched for this long are closed.
	sessionMaxAge   = 2 * time.Hour
	sessionSweepGap = 10 * time.Minute
	// Finished jobs are listed for this long.
	jobMaxAge = 24 * time.Hour
)

func main() {
	cfg := config.Load()

	// Parse command-line flags
	var (
		port    = flag.String("port", cfg.ConsolePort, "HTTP server port (or set CONSOLE_PORT env)")
		workers = flag.Int("workers", inmemory.DefaultWorkerCount, "Number of background job workers")
	)
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Amounts are sent to the browser as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	if err := run(cfg, log, *port, *workers); err != nil {
		log.Fatal().Err(err).Msg("Console stopped")
	}
	log.Info().Msg("Server exited")
}

// run serves the console until SIGINT or SIGTERM. The application and job
// queue are closed before it returns.
func run(cfg *config.Config, log zerolog.Logger, port string, workers int) error {
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	coord, err := a.Coordinator(ctx)
	if err != nil {
		return fmt.Errorf("initializing import archive: %w", err)
	}
	if !cfg.ArchiveEnabled() {
		log.Warn().Msg("No archive bucket configured - imported files will not be archived")
	}
	registry := batchimport.NewRegistry(coord)
	applier := a.Applier()

	dispatcher := &workflow.Dispatcher{
		Rules:        applier,
		Sessions:     registry,
		Transactions: a.Client,
	}

	exporter, err := a.Exporter(ctx)
	if err != nil {
		return fmt.Errorf("initializing BigQuery exporter: %w", err)
	}
	if exporter != nil {
		dispatcher.Exporter = exporter
	}
	if notion := a.Notion(); notion != nil {
		dispatcher.Notion = notion
		dispatcher.NotionDatabaseID = cfg.NotionReportsDBID
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, workers, jobStore)
	defer jobQueue.Close()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, dispatcher.Handle); err != nil {
		return fmt.Errorf("starting job workers: %w", err)
	}

	// Close abandoned import sessions and forget old job results
	go func() {
		ticker := time.NewTicker(sessionSweepGap)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case now := <-ticker.C:
				if n := registry.CloseIdle(now, sessionMaxAge); n > 0 {
					log.Info().Int("closed", n).Msg("Closed idle import sessions")
				}
				if n := jobStore.Prune(now.Add(-jobMaxAge)); n > 0 {
					log.Info().Int("pruned", n).Msg("Pruned finished jobs")
				}
			}
		}
	}()

	// Initialize handlers
	reportsHandler := handlers.NewReportsHandler(a.Client, jobQueue, log)
	reportsHandler.ExportEnabled = dispatcher.Exporter != nil
	reportsHandler.NotionEnabled = dispatcher.Notion != nil

	handler := api.NewRouter(api.Handlers{
		Rules:   handlers.NewRulesHandler(applier, jobQueue, log),
		Reports: reportsHandler,
		Imports: handlers.NewImportsHandler(registry, a.Client, jobQueue, log),
		Jobs:    handlers.NewJobsHandler(jobStore, log),
	}, a.Tokens, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Str("api_url", cfg.APIURL).Msg("Starting console server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("serving console: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	return nil
}
