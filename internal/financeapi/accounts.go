package financeapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dvloznov/finance-client/internal/domain"
)

// FetchAccounts loads the user's accounts.
func (c *Client) FetchAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.do(ctx, request{method: http.MethodGet, path: "/accounts"}, &accounts); err != nil {
		return nil, fmt.Errorf("FetchAccounts: %w", err)
	}
	return accounts, nil
}

// FetchCategories loads the user's categories.
func (c *Client) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.do(ctx, request{method: http.MethodGet, path: "/categories"}, &categories); err != nil {
		return nil, fmt.Errorf("FetchCategories: %w", err)
	}
	return categories, nil
}
