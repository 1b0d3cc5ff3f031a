package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-client/internal/domain"
)

// Summary is the headline figures of a set of transactions.
type Summary struct {
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	NetSavings       decimal.Decimal `json:"netSavings"`
	SavingsRate      decimal.Decimal `json:"savingsRate"` // fraction of income, zero without income
	TransactionCount int             `json:"transactionCount"`
}

// Summarize totals income and expense over non-transfer transactions.
func Summarize(transactions []domain.Transaction) Summary {
	var s Summary
	for _, t := range transactions {
		if t.Type.IsTransfer() {
			continue
		}
		switch t.Type {
		case domain.TypeIncome:
			s.Income = s.Income.Add(t.Amount)
		case domain.TypeExpense:
			s.Expense = s.Expense.Add(t.Amount.Abs())
		}
		s.TransactionCount++
	}

	s.NetSavings = s.Income.Sub(s.Expense)
	if s.Income.IsPositive() {
		s.SavingsRate = s.NetSavings.DivRound(s.Income, 4)
	}
	return s
}

// Report bundles every view of one date range.
type Report struct {
	Range      Range           `json:"range"`
	Summary    Summary         `json:"summary"`
	Categories []CategoryTotal `json:"categories"`
	Vendors    []VendorTotal   `json:"vendors"`
	Months     []MonthlyTotal  `json:"months"`
}

// Build computes a Report over transactions.
func Build(r Range, transactions []domain.Transaction) Report {
	return Report{
		Range:      r,
		Summary:    Summarize(transactions),
		Categories: ByCategory(transactions),
		Vendors:    ByVendor(transactions),
		Months:     ByMonth(transactions),
	}
}

// TransactionSource loads every transaction dated within [start, end].
type TransactionSource interface {
	FetchTransactionsInRange(ctx context.Context, start, end string) ([]domain.Transaction, error)
}

// Generate loads the transactions of r and builds its report.
func Generate(ctx context.Context, src TransactionSource, r Range) (Report, error) {
	txns, err := src.FetchTransactionsInRange(ctx, r.StartString(), r.EndString())
	if err != nil {
		return Report{}, fmt.Errorf("Generate: fetching transactions: %w", err)
	}
	return Build(r, txns), nil
}
