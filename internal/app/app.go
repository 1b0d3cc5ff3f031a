// Package app builds the collaborators shared by the command mains from a
// loaded configuration.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/archive"
	"github.com/dvloznov/finance-client/internal/batchimport"
	bq "github.com/dvloznov/finance-client/internal/bigquery"
	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/financeapi"
	infraBQ "github.com/dvloznov/finance-client/internal/infra/bigquery"
	"github.com/dvloznov/finance-client/internal/notionsync"
	"github.com/dvloznov/finance-client/internal/prefs"
	"github.com/dvloznov/finance-client/internal/rules"
	"github.com/dvloznov/finance-client/internal/suggest"
)

// App holds the configured backend client and local preferences.
type App struct {
	Config *config.Config
	Prefs  *prefs.Store
	Client *financeapi.Client
	// Tokens yields the configured token, then the stored one.
	Tokens TokenChain

	closers []func() error
}

// New opens the preferences store and creates the backend client. The
// token from configuration wins over the stored one. A 401 from the backend
// clears the stored token so the next run asks for a new login.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := prefs.Open(cfg.PrefsDBPath)
	if err != nil {
		return nil, fmt.Errorf("New: opening preferences: %w", err)
	}

	a := &App{
		Config: cfg,
		Prefs:  store,
		Tokens: TokenChain{financeapi.StaticToken(cfg.APIToken), store},
	}
	a.closers = append(a.closers, store.Close)

	a.Client = financeapi.NewClient(cfg.APIURL,
		financeapi.WithTimeout(cfg.HTTPTimeout),
		financeapi.WithPageSize(cfg.ApplyPageSize),
		financeapi.WithTokenSource(a.Tokens),
		financeapi.WithUnauthorizedHandler(func(ctx context.Context) {
			log.Warn().Msg("Backend rejected the token; signing out")
			if err := store.ClearToken(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to clear stored token")
			}
		}),
	)

	return a, nil
}

// Close releases every resource opened by the App, newest first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Applier creates a rule applier over the backend client.
func (a *App) Applier() *rules.Applier {
	applier := rules.NewApplier(a.Client, a.Client, a.Client)
	applier.PageSize = a.Config.ApplyPageSize
	applier.LargeUpdateThreshold = a.Config.LargeUpdateThreshold
	return applier
}

// Coordinator creates an import coordinator, archiving saved files when a
// bucket is configured.
func (a *App) Coordinator(ctx context.Context) (*batchimport.Coordinator, error) {
	if !a.Config.ArchiveEnabled() {
		return batchimport.NewCoordinator(a.Client, a.Client, nil), nil
	}

	store, err := archive.NewGCSStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("Coordinator: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	return batchimport.NewCoordinator(a.Client, a.Client, archive.New(store, a.Config.ImportArchiveBucket)), nil
}

// Exporter creates the BigQuery report exporter, or nil when disabled.
func (a *App) Exporter(ctx context.Context) (*bq.Exporter, error) {
	if !a.Config.BigQueryEnabled() {
		return nil, nil
	}

	repo, err := infraBQ.NewBigQueryReportRepository(ctx, a.Config.BQProjectID, a.Config.BQDataset)
	if err != nil {
		return nil, fmt.Errorf("Exporter: %w", err)
	}
	a.closers = append(a.closers, repo.Close)

	if err := repo.EnsureTables(ctx); err != nil {
		return nil, fmt.Errorf("Exporter: %w", err)
	}
	return bq.NewExporter(repo), nil
}

// Notion creates the Notion client, or nil when disabled.
func (a *App) Notion() notionsync.NotionService {
	if !a.Config.NotionEnabled() {
		return nil
	}
	return notionsync.NewNotionClient(a.Config.NotionToken)
}

// Suggester creates a Gemini-backed rule suggester.
func (a *App) Suggester(ctx context.Context) (*suggest.Suggester, error) {
	gen, err := suggest.NewGeminiGenerator(ctx, a.Config.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("Suggester: %w", err)
	}
	return suggest.NewSuggester(gen), nil
}

// TokenChain returns the first non-empty token of its sources.
type TokenChain []financeapi.TokenSource

// Token implements financeapi.TokenSource.
func (c TokenChain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		token, err := src.Token(ctx)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return "", nil
}
