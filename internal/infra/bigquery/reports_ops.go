package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// EnsureTablesWithClient creates monthly_totals and category_totals with
// schemas inferred from the row types, partitioned by month_start.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) error {
	tables := []struct {
		name string
		row  any
	}{
		{monthlyTotalsTable, MonthlyTotalRow{}},
		{categoryTotalsTable, CategoryTotalRow{}},
	}

	for _, tbl := range tables {
		table := client.DatasetInProject(projectID, datasetID).Table(tbl.name)
		if _, err := table.Metadata(ctx); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("EnsureTables: reading %s metadata: %w", tbl.name, err)
		}

		schema, err := bigquery.InferSchema(tbl.row)
		if err != nil {
			return fmt.Errorf("EnsureTables: inferring %s schema: %w", tbl.name, err)
		}

		meta := &bigquery.TableMetadata{
			Schema: schema,
			TimePartitioning: &bigquery.TimePartitioning{
				Type:  bigquery.MonthPartitioningType,
				Field: "month_start",
			},
		}
		if err := table.Create(ctx, meta); err != nil {
			return fmt.Errorf("EnsureTables: creating %s: %w", tbl.name, err)
		}
	}

	return nil
}

// InsertMonthlyTotalsWithClient inserts a batch of MonthlyTotalRow.
func InsertMonthlyTotalsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*MonthlyTotalRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Use fully qualified table name to avoid project ID issues
	inserter := client.DatasetInProject(projectID, datasetID).Table(monthlyTotalsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertMonthlyTotals: inserting rows: %w", err)
	}

	return nil
}

// InsertCategoryTotalsWithClient inserts a batch of CategoryTotalRow.
func InsertCategoryTotalsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, rows []*CategoryTotalRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(projectID, datasetID).Table(categoryTotalsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCategoryTotals: inserting rows: %w", err)
	}

	return nil
}

// ListExportedMonthsWithClient returns the distinct months in monthly_totals
// ordered ascending. A missing table yields no months.
func ListExportedMonthsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) ([]string, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT DISTINCT month
		FROM `+"`%s.%s.%s`"+`
		ORDER BY month
	`, projectID, datasetID, monthlyTotalsTable))

	it, err := q.Read(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ListExportedMonths: query read: %w", err)
	}

	var months []string
	for {
		var r struct {
			Month string `bigquery:"month"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExportedMonths: iter next: %w", err)
		}
		months = append(months, r.Month)
	}

	return months, nil
}
