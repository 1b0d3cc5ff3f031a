// Package workflow runs the long workflows of the console as background jobs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/finance-client/internal/batchimport"
	bq "github.com/dvloznov/finance-client/internal/bigquery"
	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/jobs"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/notionsync"
	"github.com/dvloznov/finance-client/internal/reports"
	"github.com/dvloznov/finance-client/internal/rules"
)

// Job parameter keys.
const (
	ParamKind      = "kind"
	ParamSessionID = "session_id"
	ParamStart     = "start"
	ParamEnd       = "end"
	ParamDryRun    = "dry_run"
	ParamPlanID    = "plan_id"
)

var (
	// ErrUnknownJobType is returned for a job no handler is registered for.
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrNotConfigured is returned when the integration a job needs is disabled.
	ErrNotConfigured = errors.New("integration is not configured")
	// ErrSessionNotFound is returned when an import session was closed or
	// never existed.
	ErrSessionNotFound = errors.New("import session not found")
)

// RuleRunner runs the apply-rules workflow.
type RuleRunner interface {
	Run(ctx context.Context, kind domain.RuleKind, confirm rules.ConfirmFunc) (rules.ApplyResult, error)
}

// SessionLookup finds open import sessions.
type SessionLookup interface {
	Get(id string) (*batchimport.Session, bool)
}

// ReportExporter writes monthly snapshots to the warehouse.
type ReportExporter interface {
	Export(ctx context.Context, transactions []domain.Transaction) (bq.ExportResult, error)
}

// Dispatcher routes a job to the workflow of its type. Exporter and Notion
// are optional; jobs needing them fail with ErrNotConfigured when nil.
type Dispatcher struct {
	Rules        RuleRunner
	Sessions     SessionLookup
	Transactions reports.TransactionSource

	Exporter ReportExporter

	Notion           notionsync.NotionService
	NotionDatabaseID string

	now func() time.Time
}

// Handle implements jobs.JobHandler.
func (d *Dispatcher) Handle(ctx context.Context, job *jobs.Job) error {
	log := logger.FromContext(ctx).With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().Interface("params", job.Params).Msg("Processing job")

	var (
		result any
		err    error
	)
	switch job.Type {
	case jobs.JobTypeApplyRules:
		result, err = d.applyRules(ctx, job)
	case jobs.JobTypeImportSave:
		result, err = d.saveImport(ctx, job)
	case jobs.JobTypeReportExport:
		result, err = d.exportReport(ctx, job)
	case jobs.JobTypeNotionSync:
		result, err = d.syncNotion(ctx, job)
	default:
		err = fmt.Errorf("Handle: %s: %w", job.Type, ErrUnknownJobType)
	}

	job.Result = result
	return err
}

// applyRules persists only the plan whose fingerprint the job carries. A plan
// that drifted while the job waited fails with rules.ErrPlanChanged.
func (d *Dispatcher) applyRules(ctx context.Context, job *jobs.Job) (any, error) {
	kind, err := domain.ParseRuleKind(job.Param(ParamKind))
	if err != nil {
		return nil, fmt.Errorf("applyRules: %w", err)
	}
	planID := job.Param(ParamPlanID)
	if planID == "" {
		return nil, fmt.Errorf("applyRules: missing %s", ParamPlanID)
	}

	result, err := d.Rules.Run(ctx, kind, rules.ConfirmPlan(planID))
	if err != nil {
		return result, fmt.Errorf("applyRules: %w", err)
	}
	return result, nil
}

func (d *Dispatcher) saveImport(ctx context.Context, job *jobs.Job) (any, error) {
	id := job.Param(ParamSessionID)
	session, ok := d.Sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("saveImport: %s: %w", id, ErrSessionNotFound)
	}

	result, err := session.SaveTransactions(ctx)
	if err != nil {
		return result, fmt.Errorf("saveImport: %w", err)
	}
	if result.Failed > 0 {
		return result, fmt.Errorf("saveImport: %d of %d files failed to save", result.Failed, result.Failed+result.Saved)
	}
	return result, nil
}

func (d *Dispatcher) exportReport(ctx context.Context, job *jobs.Job) (any, error) {
	if d.Exporter == nil {
		return nil, fmt.Errorf("exportReport: BigQuery: %w", ErrNotConfigured)
	}

	txns, err := d.fetchRange(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("exportReport: %w", err)
	}

	result, err := d.Exporter.Export(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("exportReport: %w", err)
	}
	return result, nil
}

func (d *Dispatcher) syncNotion(ctx context.Context, job *jobs.Job) (any, error) {
	if d.Notion == nil || d.NotionDatabaseID == "" {
		return nil, fmt.Errorf("syncNotion: Notion: %w", ErrNotConfigured)
	}

	txns, err := d.fetchRange(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("syncNotion: %w", err)
	}

	dryRun, _ := strconv.ParseBool(job.Param(ParamDryRun))
	result, err := notionsync.SyncMonthlyReport(ctx, d.Notion, d.NotionDatabaseID, notionsync.MonthReports(txns), dryRun)
	if err != nil {
		return result, fmt.Errorf("syncNotion: %w", err)
	}
	return result, nil
}

func (d *Dispatcher) fetchRange(ctx context.Context, job *jobs.Job) ([]domain.Transaction, error) {
	r, err := JobRange(job, d.clock())
	if err != nil {
		return nil, err
	}

	txns, err := d.Transactions.FetchTransactionsInRange(ctx, r.StartString(), r.EndString())
	if err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}
	return txns, nil
}

func (d *Dispatcher) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// JobRange reads the start and end params, defaulting to the current month
// when both are empty.
func JobRange(job *jobs.Job, now time.Time) (reports.Range, error) {
	start, end := job.Param(ParamStart), job.Param(ParamEnd)
	if start == "" && end == "" {
		return reports.DefaultRange(now), nil
	}
	return reports.ParseRange(start, end)
}

// NewApplyRulesJob creates an apply_rules job for the plan the user
// confirmed. planID is the fingerprint of that plan.
func NewApplyRulesJob(kind domain.RuleKind, planID string) *jobs.Job {
	return jobs.New(jobs.JobTypeApplyRules, map[string]string{
		ParamKind:   string(kind),
		ParamPlanID: planID,
	})
}

// NewImportSaveJob creates an import_save job for a session.
func NewImportSaveJob(sessionID string) *jobs.Job {
	return jobs.New(jobs.JobTypeImportSave, map[string]string{ParamSessionID: sessionID})
}

// NewReportExportJob creates a report_export job for r.
func NewReportExportJob(r reports.Range) *jobs.Job {
	return jobs.New(jobs.JobTypeReportExport, map[string]string{
		ParamStart: r.StartString(),
		ParamEnd:   r.EndString(),
	})
}

// NewNotionSyncJob creates a notion_sync job for r.
func NewNotionSyncJob(r reports.Range, dryRun bool) *jobs.Job {
	return jobs.New(jobs.JobTypeNotionSync, map[string]string{
		ParamStart:  r.StartString(),
		ParamEnd:    r.EndString(),
		ParamDryRun: strconv.FormatBool(dryRun),
	})
}
