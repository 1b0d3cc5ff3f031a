package notionsync

import (
	"sort"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/reports"
)

// Property names of the monthly report database.
const (
	PropMonth       = "Month"
	PropIncome      = "Income"
	PropExpense     = "Expense"
	PropNetSavings  = "Net Savings"
	PropSavingsRate = "Savings Rate"
	PropCount       = "Transactions"
	PropTopCategory = "Top Category"
	PropSyncedAt    = "Synced At"
)

// MonthReport is one row of the monthly report database.
type MonthReport struct {
	Month       string
	Summary     reports.Summary
	TopCategory string
}

// MonthReports groups transactions by "YYYY-MM" and summarizes each month,
// ordered ascending. TopCategory is the category with the largest total.
func MonthReports(transactions []domain.Transaction) []MonthReport {
	byMonth := make(map[string][]domain.Transaction)
	for _, t := range transactions {
		key := reports.MonthKey(t.Date)
		byMonth[key] = append(byMonth[key], t)
	}

	out := make([]MonthReport, 0, len(byMonth))
	for month, txns := range byMonth {
		mr := MonthReport{Month: month, Summary: reports.Summarize(txns)}
		if cats := reports.ByCategory(txns); len(cats) > 0 {
			mr.TopCategory = cats[0].CategoryName
		}
		out = append(out, mr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// MonthReportToNotionProperties converts a month report to page properties.
func MonthReportToNotionProperties(m MonthReport, syncedAt time.Time) notionapi.Properties {
	props := notionapi.Properties{
		PropMonth: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: m.Month},
				},
			},
		},
		PropIncome:      notionapi.NumberProperty{Number: number(m.Summary.Income)},
		PropExpense:     notionapi.NumberProperty{Number: number(m.Summary.Expense)},
		PropNetSavings:  notionapi.NumberProperty{Number: number(m.Summary.NetSavings)},
		PropSavingsRate: notionapi.NumberProperty{Number: number(m.Summary.SavingsRate)},
		PropCount:       notionapi.NumberProperty{Number: float64(m.Summary.TransactionCount)},
		PropSyncedAt: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(syncedAt.UTC())
					return &d
				}(),
			},
		},
	}

	if m.TopCategory != "" {
		props[PropTopCategory] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: m.TopCategory},
				},
			},
		}
	}

	return props
}

func number(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// pageTitle returns the plain text of the Month title property.
func pageTitle(page notionapi.Page) string {
	var title []notionapi.RichText
	switch prop := page.Properties[PropMonth].(type) {
	case *notionapi.TitleProperty:
		title = prop.Title
	case notionapi.TitleProperty:
		title = prop.Title
	}
	if len(title) == 0 {
		return ""
	}
	if title[0].PlainText != "" {
		return title[0].PlainText
	}
	if title[0].Text != nil {
		return title[0].Text.Content
	}
	return ""
}
