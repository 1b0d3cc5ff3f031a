package bigquery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/reports"
)

// ExportResult summarizes one export run.
type ExportResult struct {
	ExportID string   `json:"exportId"`
	Exported []string `json:"exported"`
	Skipped  []string `json:"skipped"`
}

// Exporter writes monthly report snapshots to a ReportRepository.
type Exporter struct {
	repo ReportRepository
	now  func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(repo ReportRepository) *Exporter {
	return &Exporter{repo: repo, now: time.Now}
}

// Export groups transactions by month and inserts monthly and per-category
// totals for every month the warehouse does not already hold. Months with a
// malformed date key are skipped.
func (e *Exporter) Export(ctx context.Context, transactions []domain.Transaction) (ExportResult, error) {
	log := logger.FromContext(ctx)

	existing, err := e.repo.ListExportedMonths(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("Export: listing exported months: %w", err)
	}
	done := make(map[string]bool, len(existing))
	for _, m := range existing {
		done[m] = true
	}

	byMonth := make(map[string][]domain.Transaction)
	for _, t := range transactions {
		key := reports.MonthKey(t.Date)
		byMonth[key] = append(byMonth[key], t)
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	result := ExportResult{ExportID: uuid.NewString()}
	ts := e.now().UTC()

	var monthly []*MonthlyTotalRow
	var categories []*CategoryTotalRow
	for _, month := range months {
		if done[month] {
			result.Skipped = append(result.Skipped, month)
			continue
		}
		start, err := civil.ParseDate(month + "-01")
		if err != nil {
			log.Warn().Str("month", month).Msg("Skipping month with malformed date")
			result.Skipped = append(result.Skipped, month)
			continue
		}

		txns := byMonth[month]
		monthly = append(monthly, MonthlyRow(result.ExportID, month, start, reports.Summarize(txns), ts))
		for _, c := range reports.ByCategory(txns) {
			categories = append(categories, CategoryRow(result.ExportID, month, start, c, ts))
		}
		result.Exported = append(result.Exported, month)
	}

	if len(monthly) == 0 {
		log.Info().Int("skipped", len(result.Skipped)).Msg("No new months to export")
		return result, nil
	}

	if err := e.repo.InsertMonthlyTotals(ctx, monthly); err != nil {
		return ExportResult{}, fmt.Errorf("Export: inserting monthly totals: %w", err)
	}
	if err := e.repo.InsertCategoryTotals(ctx, categories); err != nil {
		return ExportResult{}, fmt.Errorf("Export: inserting category totals: %w", err)
	}

	log.Info().
		Str("export_id", result.ExportID).
		Strs("months", result.Exported).
		Int("category_rows", len(categories)).
		Msg("Exported report snapshot")

	return result, nil
}

// MonthlyRow converts a month summary into a warehouse row.
func MonthlyRow(exportID, month string, start civil.Date, s reports.Summary, ts time.Time) *MonthlyTotalRow {
	return &MonthlyTotalRow{
		ExportID:         exportID,
		Month:            month,
		MonthStart:       start,
		Income:           s.Income.Rat(),
		Expense:          s.Expense.Rat(),
		NetSavings:       s.NetSavings.Rat(),
		TransactionCount: int64(s.TransactionCount),
		ExportedTS:       ts,
	}
}

// CategoryRow converts a category total into a warehouse row.
func CategoryRow(exportID, month string, start civil.Date, c reports.CategoryTotal, ts time.Time) *CategoryTotalRow {
	return &CategoryTotalRow{
		ExportID:         exportID,
		Month:            month,
		MonthStart:       start,
		CategoryName:     c.CategoryName,
		Total:            c.Total.Rat(),
		TransactionCount: int64(c.Count),
		ExportedTS:       ts,
	}
}
