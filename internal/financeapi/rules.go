package financeapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-client/internal/domain"
)

// ruleDTO is the wire form of vendor and category rules; only the target
// field of the rule's kind is set.
type ruleDTO struct {
	ID           int64  `json:"id,omitempty"`
	Keyword      string `json:"keyword"`
	VendorName   string `json:"vendorName,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
	Priority     int    `json:"priority"`
}

func (d ruleDTO) toDomain(kind domain.RuleKind) domain.Rule {
	value := d.VendorName
	if kind == domain.RuleKindCategory {
		value = d.CategoryName
	}
	return domain.Rule{ID: d.ID, Keyword: d.Keyword, Value: value, Priority: d.Priority, Kind: kind}
}

func rulePath(kind domain.RuleKind) (string, error) {
	switch kind {
	case domain.RuleKindVendor:
		return "/vendor-rules", nil
	case domain.RuleKindCategory:
		return "/category-rules", nil
	}
	return "", fmt.Errorf("unknown rule kind %q", kind)
}

// FetchRules loads every rule of kind.
func (c *Client) FetchRules(ctx context.Context, kind domain.RuleKind) ([]domain.Rule, error) {
	path, err := rulePath(kind)
	if err != nil {
		return nil, fmt.Errorf("FetchRules: %w", err)
	}

	var dtos []ruleDTO
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &dtos); err != nil {
		return nil, fmt.Errorf("FetchRules: %s: %w", kind, err)
	}

	rules := make([]domain.Rule, len(dtos))
	for i, d := range dtos {
		rules[i] = d.toDomain(kind)
	}
	return rules, nil
}

// CreateRule creates a rule and returns it as stored.
func (c *Client) CreateRule(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	path, err := rulePath(rule.Kind)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("CreateRule: %w", err)
	}

	dto := ruleDTO{Keyword: rule.Keyword, Priority: rule.Priority}
	if rule.Kind == domain.RuleKindCategory {
		dto.CategoryName = rule.Value
	} else {
		dto.VendorName = rule.Value
	}

	req, err := jsonRequest(http.MethodPost, path, dto)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("CreateRule: %w", err)
	}

	var created ruleDTO
	if err := c.do(ctx, req, &created); err != nil {
		return domain.Rule{}, fmt.Errorf("CreateRule: %q: %w", rule.Keyword, err)
	}
	return created.toDomain(rule.Kind), nil
}

// DeleteRule deletes the rule of kind with id.
func (c *Client) DeleteRule(ctx context.Context, kind domain.RuleKind, id int64) error {
	path, err := rulePath(kind)
	if err != nil {
		return fmt.Errorf("DeleteRule: %w", err)
	}
	if err := c.do(ctx, request{method: http.MethodDelete, path: path + "/" + strconv.FormatInt(id, 10)}, nil); err != nil {
		return fmt.Errorf("DeleteRule: %s %d: %w", kind, id, err)
	}
	return nil
}

// PreviewCategoryRules asks the backend which transactions its category
// rules would change.
func (c *Client) PreviewCategoryRules(ctx context.Context) ([]domain.RuleChangePreview, error) {
	var previews []domain.RuleChangePreview
	if err := c.do(ctx, request{method: http.MethodGet, path: "/category-rules/preview"}, &previews); err != nil {
		return nil, fmt.Errorf("PreviewCategoryRules: %w", err)
	}
	return previews, nil
}

// ApplyCategoryRules has the backend apply its category rules to
// uncategorized transactions.
func (c *Client) ApplyCategoryRules(ctx context.Context) error {
	req, err := jsonRequest(http.MethodPost, "/category-rules/apply", struct{}{})
	if err != nil {
		return fmt.Errorf("ApplyCategoryRules: %w", err)
	}
	if err := c.do(ctx, req, nil); err != nil {
		return fmt.Errorf("ApplyCategoryRules: %w", err)
	}
	return nil
}
