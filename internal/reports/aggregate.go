// Package reports groups transactions by category, vendor and month.
// Every function here is pure: the same input always yields the same
// output, whatever the order of the input.
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-client/internal/domain"
)

const (
	// UncategorizedLabel groups transactions without a category.
	UncategorizedLabel = "Uncategorized"
	// UnknownVendorLabel groups transactions without a vendor.
	UnknownVendorLabel = "Unknown Vendor"
)

// CategoryTotal is the spending or income of one category.
type CategoryTotal struct {
	CategoryName   string          `json:"categoryName"`
	Total          decimal.Decimal `json:"total"`
	Count          int             `json:"count"`
	AvgTransaction decimal.Decimal `json:"avgTransaction"`
}

// VendorTotal is the absolute amount spent or received at one vendor.
type VendorTotal struct {
	VendorName string          `json:"vendorName"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Categories []string        `json:"categories"`
}

// MonthlyTotal is the income and expense of one calendar month.
type MonthlyTotal struct {
	Month      string          `json:"month"` // "YYYY-MM"
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	NetSavings decimal.Decimal `json:"netSavings"`
}

// ByCategory groups non-transfer transactions by category name. Expenses add
// their absolute amount; every other type adds its signed amount. Ordered by
// total descending, then name.
func ByCategory(transactions []domain.Transaction) []CategoryTotal {
	type acc struct {
		total decimal.Decimal
		count int
	}
	groups := make(map[string]*acc)

	for _, t := range transactions {
		if t.Type.IsTransfer() {
			continue
		}
		name := labelOr(t.CategoryName, UncategorizedLabel)
		g, ok := groups[name]
		if !ok {
			g = &acc{}
			groups[name] = g
		}
		if t.Type == domain.TypeExpense {
			g.total = g.total.Add(t.Amount.Abs())
		} else {
			g.total = g.total.Add(t.Amount)
		}
		g.count++
	}

	results := make([]CategoryTotal, 0, len(groups))
	for name, g := range groups {
		results = append(results, CategoryTotal{
			CategoryName:   name,
			Total:          g.total,
			Count:          g.count,
			AvgTransaction: g.total.Div(decimal.NewFromInt(int64(g.count))),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if c := results[i].Total.Cmp(results[j].Total); c != 0 {
			return c > 0
		}
		return results[i].CategoryName < results[j].CategoryName
	})
	return results
}

// ByVendor groups non-transfer transactions by vendor name, summing absolute
// amounts and collecting the distinct categories seen. Ordered by total
// descending, then name; categories are sorted.
func ByVendor(transactions []domain.Transaction) []VendorTotal {
	type acc struct {
		total      decimal.Decimal
		count      int
		categories map[string]struct{}
	}
	groups := make(map[string]*acc)

	for _, t := range transactions {
		if t.Type.IsTransfer() {
			continue
		}
		name := labelOr(t.VendorName, UnknownVendorLabel)
		g, ok := groups[name]
		if !ok {
			g = &acc{categories: make(map[string]struct{})}
			groups[name] = g
		}
		g.total = g.total.Add(t.Amount.Abs())
		g.count++
		if t.CategoryName != nil && *t.CategoryName != "" {
			g.categories[*t.CategoryName] = struct{}{}
		}
	}

	results := make([]VendorTotal, 0, len(groups))
	for name, g := range groups {
		cats := make([]string, 0, len(g.categories))
		for c := range g.categories {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		results = append(results, VendorTotal{
			VendorName: name,
			Total:      g.total,
			Count:      g.count,
			Categories: cats,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if c := results[i].Total.Cmp(results[j].Total); c != 0 {
			return c > 0
		}
		return results[i].VendorName < results[j].VendorName
	})
	return results
}

// ByMonth groups non-transfer transactions by the first seven characters of
// their ISO date. Income adds its signed amount, expense its absolute amount.
// Ordered chronologically.
func ByMonth(transactions []domain.Transaction) []MonthlyTotal {
	type acc struct {
		income  decimal.Decimal
		expense decimal.Decimal
	}
	groups := make(map[string]*acc)

	for _, t := range transactions {
		if t.Type.IsTransfer() {
			continue
		}
		month := MonthKey(t.Date)
		g, ok := groups[month]
		if !ok {
			g = &acc{}
			groups[month] = g
		}
		switch t.Type {
		case domain.TypeIncome:
			g.income = g.income.Add(t.Amount)
		case domain.TypeExpense:
			g.expense = g.expense.Add(t.Amount.Abs())
		}
	}

	results := make([]MonthlyTotal, 0, len(groups))
	for month, g := range groups {
		results = append(results, MonthlyTotal{
			Month:      month,
			Income:     g.income,
			Expense:    g.expense,
			NetSavings: g.income.Sub(g.expense),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Month < results[j].Month })
	return results
}

// MonthKey truncates an ISO date to "YYYY-MM". Shorter strings are returned
// unchanged.
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

func labelOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
