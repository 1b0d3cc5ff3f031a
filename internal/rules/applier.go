package rules

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/paging"
)

const (
	// DefaultPageSize is the page size used to load every transaction.
	DefaultPageSize = 1000
	// DefaultLargeUpdateThreshold is the plan size above which an update is
	// flagged as large.
	DefaultLargeUpdateThreshold = 100

	defaultSort = "date,desc"
)

// PageFetcher loads one page of transactions.
type PageFetcher interface {
	FetchTransactionsPage(ctx context.Context, filter domain.TransactionFilter, page, size int, sort string) (domain.Page[domain.Transaction], error)
}

// BulkPersister writes many transaction updates in one call and returns the
// updated transactions.
type BulkPersister interface {
	BulkUpdateTransactions(ctx context.Context, updates []domain.TransactionFormData) ([]domain.Transaction, error)
}

// RuleSource loads the current rule set of a kind.
type RuleSource interface {
	FetchRules(ctx context.Context, kind domain.RuleKind) ([]domain.Rule, error)
}

// Analysis is the result of planning a rule set over every transaction.
type Analysis struct {
	Kind        domain.RuleKind
	RuleCount   int
	Scanned     int
	PageCalls   int
	Changes     []Change
	LargeUpdate bool
}

// Empty reports whether the rule set would change nothing.
func (a *Analysis) Empty() bool { return a == nil || len(a.Changes) == 0 }

// Previews returns the changes in display form.
func (a *Analysis) Previews() []domain.RuleChangePreview { return Previews(a.Changes) }

// ConfirmFunc asks the user to accept an analysis before it is persisted.
type ConfirmFunc func(ctx context.Context, a *Analysis) (bool, error)

// ApplyResult summarizes a Run.
type ApplyResult struct {
	Kind        domain.RuleKind `json:"kind"`
	Scanned     int             `json:"scanned"`
	Planned     int             `json:"planned"`
	Updated     int             `json:"updated"`
	NoChanges   bool            `json:"noChanges"`
	Confirmed   bool            `json:"confirmed"`
	LargeUpdate bool            `json:"largeUpdate"`
}

// Applier re-applies a rule set to every transaction: fetch all pages, plan,
// gate on an empty plan, confirm, then persist in a single bulk call.
type Applier struct {
	pages     PageFetcher
	persister BulkPersister
	rules     RuleSource

	PageSize             int
	LargeUpdateThreshold int
	Filter               domain.TransactionFilter
}

// NewApplier creates an Applier with default page size and threshold.
func NewApplier(pages PageFetcher, persister BulkPersister, rules RuleSource) *Applier {
	return &Applier{
		pages:                pages,
		persister:            persister,
		rules:                rules,
		PageSize:             DefaultPageSize,
		LargeUpdateThreshold: DefaultLargeUpdateThreshold,
	}
}

// Analyze loads a fresh snapshot of the rules of kind and plans them over
// every transaction. Any load failure is returned as *AnalyzeError.
func (a *Applier) Analyze(ctx context.Context, kind domain.RuleKind) (*Analysis, error) {
	log := logger.FromContext(ctx)

	ruleSet, err := a.rules.FetchRules(ctx, kind)
	if err != nil {
		log.Error().Err(err).Str("rule_kind", string(kind)).Msg("Failed to load rules")
		return nil, &AnalyzeError{Kind: kind, Err: fmt.Errorf("Analyze: fetching rules: %w", err)}
	}
	return a.AnalyzeWithRules(ctx, kind, ruleSet)
}

// AnalyzeWithRules plans the given rule snapshot over every transaction.
func (a *Applier) AnalyzeWithRules(ctx context.Context, kind domain.RuleKind, ruleSet []domain.Rule) (*Analysis, error) {
	log := logger.FromContext(ctx)

	txns, calls, err := paging.All(ctx, a.pageSize(), func(ctx context.Context, page, size int) (domain.Page[domain.Transaction], error) {
		log.Debug().Str("rule_kind", string(kind)).Int("page", page).Int("size", size).Msg("Fetching transactions page")
		return a.pages.FetchTransactionsPage(ctx, a.Filter, page, size, defaultSort)
	})
	if err != nil {
		log.Error().Err(err).Str("rule_kind", string(kind)).Int("page_calls", calls).Msg("Failed to fetch transactions")
		return nil, &AnalyzeError{Kind: kind, Err: fmt.Errorf("AnalyzeWithRules: %w", err)}
	}

	changes := Plan(kind, txns, ruleSet)
	analysis := &Analysis{
		Kind:        kind,
		RuleCount:   len(ruleSet),
		Scanned:     len(txns),
		PageCalls:   calls,
		Changes:     changes,
		LargeUpdate: len(changes) > a.threshold(),
	}

	log.Info().
		Str("rule_kind", string(kind)).
		Int("rules", len(ruleSet)).
		Int("scanned", len(txns)).
		Int("planned", len(changes)).
		Bool("large_update", analysis.LargeUpdate).
		Msg("Analyzed rules")

	return analysis, nil
}

// Apply persists an analysis in a single bulk call and returns the number of
// transactions the backend reports as updated.
func (a *Applier) Apply(ctx context.Context, analysis *Analysis) (int, error) {
	if analysis == nil {
		return 0, ErrNotAnalyzed
	}
	if analysis.Empty() {
		return 0, ErrNoChanges
	}

	log := logger.FromContext(ctx)

	updated, err := a.persister.BulkUpdateTransactions(ctx, Updates(analysis.Changes))
	if err != nil {
		log.Error().Err(err).Str("rule_kind", string(analysis.Kind)).Int("planned", len(analysis.Changes)).Msg("Bulk update failed")
		return 0, &PersistError{Kind: analysis.Kind, Count: len(analysis.Changes), Err: fmt.Errorf("Apply: bulk update: %w", err)}
	}

	log.Info().Str("rule_kind", string(analysis.Kind)).Int("updated", len(updated)).Msg("Applied rules")
	return len(updated), nil
}

// Run performs the whole workflow. An empty plan ends the run without calling
// confirm. A declined confirmation ends it without persisting.
func (a *Applier) Run(ctx context.Context, kind domain.RuleKind, confirm ConfirmFunc) (ApplyResult, error) {
	result := ApplyResult{Kind: kind}

	analysis, err := a.Analyze(ctx, kind)
	if err != nil {
		return result, err
	}

	result.Scanned = analysis.Scanned
	result.Planned = len(analysis.Changes)
	result.LargeUpdate = analysis.LargeUpdate

	if analysis.Empty() {
		result.NoChanges = true
		return result, nil
	}

	ok, err := confirm(ctx, analysis)
	if err != nil {
		return result, fmt.Errorf("Run: confirmation: %w", err)
	}
	if !ok {
		log := logger.FromContext(ctx)
		log.Info().Str("rule_kind", string(kind)).Msg("Rule application declined")
		return result, nil
	}
	result.Confirmed = true

	updated, err := a.Apply(ctx, analysis)
	if err != nil {
		return result, err
	}
	result.Updated = updated
	return result, nil
}

func (a *Applier) pageSize() int {
	if a.PageSize <= 0 {
		return DefaultPageSize
	}
	return a.PageSize
}

func (a *Applier) threshold() int {
	if a.LargeUpdateThreshold <= 0 {
		return DefaultLargeUpdateThreshold
	}
	return a.LargeUpdateThreshold
}

// AutoConfirm accepts every analysis.
func AutoConfirm(context.Context, *Analysis) (bool, error) { return true, nil }
