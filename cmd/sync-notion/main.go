package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/app"
	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/notionsync"
	"github.com/dvloznov/finance-client/internal/reports"
)

func main() {
	cfg := config.Load()

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.LogLevel)

	// Parse CLI flags
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionReportsDBID, "Notion reports database ID (or set NOTION_REPORTS_DB_ID env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *startDateStr == "" {
		log.Fatal().Msg("Error: --start-date is required")
	}
	if *endDateStr == "" {
		log.Fatal().Msg("Error: --end-date is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	r, err := reports.ParseRange(*startDateStr, *endDateStr)
	if err != nil {
		log.Fatal().Err(err).
			Str("start_date", *startDateStr).
			Str("end_date", *endDateStr).
			Msg("Error: invalid date range, expected YYYY-MM-DD with end-date after start-date")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("start_date", r.StartString()).
		Str("end_date", r.EndString()).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	result, err := syncRange(cfg, log, r, notionsync.NewNotionClient(*notionToken), *notionDBID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		result.Created, result.Updated, result.Archived, result.Failed)
}

// syncRange pushes the monthly totals of r to the reports database. The
// application is closed before it returns.
func syncRange(cfg *config.Config, log zerolog.Logger, r reports.Range, notion notionsync.NotionService, dbID string, dryRun bool) (notionsync.SyncResult, error) {
	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(cfg, log)
	if err != nil {
		return notionsync.SyncResult{}, fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	txns, err := a.Client.FetchTransactionsInRange(ctx, r.StartString(), r.EndString())
	if err != nil {
		return notionsync.SyncResult{}, fmt.Errorf("fetching transactions: %w", err)
	}

	return notionsync.SyncMonthlyReport(ctx, notion, dbID, notionsync.MonthReports(txns), dryRun)
}
