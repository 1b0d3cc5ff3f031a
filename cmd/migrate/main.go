package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/config"
	infraBQ "github.com/dvloznov/finance-client/internal/infra/bigquery"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/prefs"
)

func main() {
	cfg := config.Load()

	var (
		prefsPath = flag.String("prefs", cfg.PrefsDBPath, "Path to the local preferences database (or set PREFS_DB_PATH env)")
		projectID = flag.String("project", cfg.BQProjectID, "GCP project ID of the report warehouse (or set BQ_PROJECT_ID env)")
		datasetID = flag.String("dataset", cfg.BQDataset, "BigQuery dataset ID of the report warehouse")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	if err := migrate(log, *prefsPath, *projectID, *datasetID); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	fmt.Println("Migrations completed successfully.")
}

// migrate brings the preferences database and, when a project is given, the
// report tables up to date.
func migrate(log zerolog.Logger, prefsPath, projectID, datasetID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("path", prefsPath).Msg("Migrating preferences database")
	store, err := prefs.Open(prefsPath)
	if err != nil {
		return fmt.Errorf("migrating preferences database: %w", err)
	}
	store.Close()

	if projectID == "" {
		log.Info().Msg("No BigQuery project configured - skipping report tables")
		return nil
	}

	repo, err := infraBQ.NewBigQueryReportRepository(ctx, projectID, datasetID)
	if err != nil {
		return fmt.Errorf("creating BigQuery client: %w", err)
	}
	defer repo.Close()

	log.Info().Str("project", projectID).Str("dataset", datasetID).Msg("Ensuring report tables")
	if err := repo.EnsureTables(ctx); err != nil {
		return fmt.Errorf("creating report tables: %w", err)
	}
	return nil
}
