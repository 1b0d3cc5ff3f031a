package bigquery

import (
	"context"
	"math/big"
	"time"

	"cloud.google.com/go/civil"
)

// ReportRepository provides an interface for the report warehouse.
type ReportRepository interface {
	// InsertMonthlyTotals inserts one row per exported month.
	InsertMonthlyTotals(ctx context.Context, rows []*MonthlyTotalRow) error

	// InsertCategoryTotals inserts one row per month and category.
	InsertCategoryTotals(ctx context.Context, rows []*CategoryTotalRow) error

	// ListExportedMonths returns the "YYYY-MM" keys already in the warehouse.
	ListExportedMonths(ctx context.Context) ([]string, error)
}

// MonthlyTotalRow represents a row in the monthly_totals table.
type MonthlyTotalRow struct {
	ExportID string `bigquery:"export_id"` // REQUIRED

	Month      string     `bigquery:"month"`       // REQUIRED "YYYY-MM"
	MonthStart civil.Date `bigquery:"month_start"` // REQUIRED

	Income     *big.Rat `bigquery:"income"`      // REQUIRED NUMERIC
	Expense    *big.Rat `bigquery:"expense"`     // REQUIRED NUMERIC
	NetSavings *big.Rat `bigquery:"net_savings"` // REQUIRED NUMERIC

	TransactionCount int64 `bigquery:"transaction_count"`

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// CategoryTotalRow represents a row in the category_totals table.
type CategoryTotalRow struct {
	ExportID string `bigquery:"export_id"` // REQUIRED

	Month      string     `bigquery:"month"`       // REQUIRED "YYYY-MM"
	MonthStart civil.Date `bigquery:"month_start"` // REQUIRED

	CategoryName string   `bigquery:"category_name"` // REQUIRED
	Total        *big.Rat `bigquery:"total"`         // REQUIRED NUMERIC

	TransactionCount int64 `bigquery:"transaction_count"`

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}
