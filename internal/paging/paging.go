// Package paging drains paginated backend listings.
package paging

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-client/internal/domain"
)

// FetchFunc returns page number page (zero-based) of at most size items.
type FetchFunc[T any] func(ctx context.Context, page, size int) (domain.Page[T], error)

// ErrInvalidPageSize is returned when All is called with a non-positive size.
var ErrInvalidPageSize = errors.New("page size must be positive")

// All requests pages sequentially until a page reports Last and returns the
// accumulated content. A short page that is not flagged Last does not stop
// the loop, and a full page flagged Last does. The returned count is the
// number of fetch calls made.
func All[T any](ctx context.Context, size int, fetch FetchFunc[T]) ([]T, int, error) {
	if size <= 0 {
		return nil, 0, ErrInvalidPageSize
	}

	var items []T
	calls := 0
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, calls, fmt.Errorf("All: page %d: %w", page, err)
		}

		calls++
		resp, err := fetch(ctx, page, size)
		if err != nil {
			return nil, calls, fmt.Errorf("All: fetching page %d: %w", page, err)
		}
		items = append(items, resp.Content...)

		if resp.Last {
			return items, calls, nil
		}
	}
}
