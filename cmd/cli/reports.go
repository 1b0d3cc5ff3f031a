package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/notionsync"
	"github.com/dvloznov/finance-client/internal/reports"
)

// topN bounds the category and vendor rows printed.
const topN = 10

func runReport(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	start := fs.String("start", "", "Start date in YYYY-MM-DD format")
	end := fs.String("end", "", "End date in YYYY-MM-DD format")
	preset := fs.String("preset", "", "Range preset: this-month, last-month, last-3-months, ytd, last-year")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	exportBQ := fs.Bool("export-bq", false, "Export monthly totals to BigQuery")
	toNotion := fs.Bool("notion", false, "Sync monthly totals to the Notion reports database")
	dryRun := fs.Bool("dry-run", false, "Preview the Notion sync without writing")
	fs.Parse(os.Args[2:])

	r, err := resolveRange(*preset, *start, *end, time.Now())
	if err != nil {
		return fmt.Errorf("invalid date range: %w", err)
	}

	a, ctx, done, err := setup(cfg, log, 10*time.Minute)
	if err != nil {
		return err
	}
	defer done()

	txns, err := a.Client.FetchTransactionsInRange(ctx, r.StartString(), r.EndString())
	if err != nil {
		return fmt.Errorf("fetching transactions: %w", err)
	}
	report := reports.Build(r, txns)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	} else {
		printReport(os.Stdout, report)
	}

	if *exportBQ {
		exporter, err := a.Exporter(ctx)
		if err != nil {
			return fmt.Errorf("initializing BigQuery exporter: %w", err)
		}
		if exporter == nil {
			return errors.New("-export-bq needs BQ_PROJECT_ID")
		}
		result, err := exporter.Export(ctx, txns)
		if err != nil {
			return fmt.Errorf("BigQuery export: %w", err)
		}
		fmt.Printf("BigQuery: exported %d months, skipped %d already exported.\n", len(result.Exported), len(result.Skipped))
	}

	if *toNotion {
		notion := a.Notion()
		if notion == nil {
			return errors.New("-notion needs NOTION_TOKEN and NOTION_REPORTS_DB_ID")
		}
		result, err := notionsync.SyncMonthlyReport(ctx, notion, cfg.NotionReportsDBID, notionsync.MonthReports(txns), *dryRun)
		if err != nil {
			return fmt.Errorf("Notion sync: %w", err)
		}
		fmt.Printf("Notion: %d created, %d updated, %d archived, %d failed.\n", result.Created, result.Updated, result.Archived, result.Failed)
	}
	return nil
}

// resolveRange picks the report range: a preset, an explicit start/end pair,
// or the current month when neither is given.
func resolveRange(preset, start, end string, now time.Time) (reports.Range, error) {
	switch {
	case preset != "" && (start != "" || end != ""):
		return reports.Range{}, fmt.Errorf("use either -preset or -start/-end")
	case preset != "":
		return reports.Preset(preset).Resolve(civil.DateOf(now))
	case start != "" || end != "":
		return reports.ParseRange(start, end)
	}
	return reports.DefaultRange(now), nil
}

func printReport(out io.Writer, report reports.Report) {
	s := report.Summary
	fmt.Fprintf(out, "%s (%s to %s)\n\n", report.Range.Label, report.Range.StartString(), report.Range.EndString())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Income\t%s\n", s.Income.StringFixed(2))
	fmt.Fprintf(w, "Expense\t%s\n", s.Expense.StringFixed(2))
	fmt.Fprintf(w, "Net savings\t%s\n", s.NetSavings.StringFixed(2))
	fmt.Fprintf(w, "Savings rate\t%s%%\n", s.SavingsRate.Shift(2).StringFixed(1))
	fmt.Fprintf(w, "Transactions\t%d\n", s.TransactionCount)
	w.Flush()

	if len(report.Categories) > 0 {
		fmt.Fprintln(out, "\nTop categories:")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		for i, c := range report.Categories {
			if i == topN {
				break
			}
			fmt.Fprintf(w, "  %s\t%s\t%d\t\n", c.CategoryName, c.Total.StringFixed(2), c.Count)
		}
		w.Flush()
	}

	if len(report.Vendors) > 0 {
		fmt.Fprintln(out, "\nTop vendors:")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		for i, v := range report.Vendors {
			if i == topN {
				break
			}
			fmt.Fprintf(w, "  %s\t%s\t%d\t\n", v.VendorName, v.Total.StringFixed(2), v.Count)
		}
		w.Flush()
	}

	if len(report.Months) > 1 {
		fmt.Fprintln(out, "\nBy month:")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, m := range report.Months {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t\n", m.Month, m.Income.StringFixed(2), m.Expense.StringFixed(2), m.NetSavings.StringFixed(2))
		}
		w.Flush()
	}
}
