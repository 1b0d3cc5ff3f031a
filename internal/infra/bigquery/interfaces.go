package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	bq "github.com/dvloznov/finance-client/internal/bigquery"
)

// Re-export interface and rows from shared package
type ReportRepository = bq.ReportRepository
type MonthlyTotalRow = bq.MonthlyTotalRow
type CategoryTotalRow = bq.CategoryTotalRow

const (
	monthlyTotalsTable  = "monthly_totals"
	categoryTotalsTable = "category_totals"
)

// BigQueryReportRepository is the concrete implementation of ReportRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryReportRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryReportRepository creates a new instance of BigQueryReportRepository
// with a shared BigQuery client.
func NewBigQueryReportRepository(ctx context.Context, projectID, datasetID string) (*BigQueryReportRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryReportRepository: creating client: %w", err)
	}
	return &BigQueryReportRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryReportRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTables creates the report tables when they do not exist yet.
func (r *BigQueryReportRepository) EnsureTables(ctx context.Context) error {
	return EnsureTablesWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// InsertMonthlyTotals delegates to InsertMonthlyTotalsWithClient with the shared client.
func (r *BigQueryReportRepository) InsertMonthlyTotals(ctx context.Context, rows []*MonthlyTotalRow) error {
	return InsertMonthlyTotalsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// InsertCategoryTotals delegates to InsertCategoryTotalsWithClient with the shared client.
func (r *BigQueryReportRepository) InsertCategoryTotals(ctx context.Context, rows []*CategoryTotalRow) error {
	return InsertCategoryTotalsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// ListExportedMonths delegates to ListExportedMonthsWithClient with the shared client.
func (r *BigQueryReportRepository) ListExportedMonths(ctx context.Context) ([]string, error) {
	return ListExportedMonthsWithClient(ctx, r.client, r.projectID, r.datasetID)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

var _ ReportRepository = (*BigQueryReportRepository)(nil)
