package financeapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/paging"
)

// DefaultSort orders transaction listings newest first.
const DefaultSort = "date,desc"

// FetchTransactionsPage loads one page of transactions matching filter.
func (c *Client) FetchTransactionsPage(ctx context.Context, filter domain.TransactionFilter, page, size int, sort string) (domain.Page[domain.Transaction], error) {
	q := filterQuery(filter)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if sort != "" {
		q.Set("sort", sort)
	}

	var resp domain.Page[domain.Transaction]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/transactions", query: q}, &resp); err != nil {
		return domain.Page[domain.Transaction]{}, fmt.Errorf("FetchTransactionsPage: page %d: %w", page, err)
	}
	return resp, nil
}

// FetchAllTransactions loads every transaction matching filter, one page at
// a time until the backend reports the last page.
func (c *Client) FetchAllTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	txns, _, err := paging.All(ctx, c.pageSize, func(ctx context.Context, page, size int) (domain.Page[domain.Transaction], error) {
		return c.FetchTransactionsPage(ctx, filter, page, size, DefaultSort)
	})
	if err != nil {
		return nil, fmt.Errorf("FetchAllTransactions: %w", err)
	}
	return txns, nil
}

// FetchTransactionsInRange loads every transaction dated within [start, end]
// (YYYY-MM-DD).
func (c *Client) FetchTransactionsInRange(ctx context.Context, start, end string) ([]domain.Transaction, error) {
	return c.FetchAllTransactions(ctx, domain.TransactionFilter{StartDate: start, EndDate: end})
}

// BulkUpdateTransactions writes updates in a single call and returns the
// updated transactions.
func (c *Client) BulkUpdateTransactions(ctx context.Context, updates []domain.TransactionFormData) ([]domain.Transaction, error) {
	req, err := jsonRequest(http.MethodPatch, "/transactions/bulk", updates)
	if err != nil {
		return nil, fmt.Errorf("BulkUpdateTransactions: %w", err)
	}

	var updated []domain.Transaction
	if err := c.do(ctx, req, &updated); err != nil {
		return nil, fmt.Errorf("BulkUpdateTransactions: %d updates: %w", len(updates), err)
	}
	return updated, nil
}

func filterQuery(f domain.TransactionFilter) url.Values {
	q := url.Values{}
	if f.AccountID != nil {
		q.Set("accountId", strconv.FormatInt(*f.AccountID, 10))
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.Description != "" {
		q.Set("description", f.Description)
	}
	if f.CategoryName != "" {
		q.Set("categoryName", f.CategoryName)
	}
	if f.VendorName != "" {
		q.Set("vendorName", f.VendorName)
	}
	if f.MinAmount != nil {
		q.Set("minAmount", f.MinAmount.String())
	}
	if f.MaxAmount != nil {
		q.Set("maxAmount", f.MaxAmount.String())
	}
	if f.StartDate != "" {
		q.Set("startDate", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("endDate", f.EndDate)
	}
	return q
}
