package domain

import "fmt"

// RuleKind selects which transaction field a rule family derives.
type RuleKind string

const (
	RuleKindVendor   RuleKind = "vendor"
	RuleKindCategory RuleKind = "category"
)

// ParseRuleKind validates a user supplied rule kind.
func ParseRuleKind(s string) (RuleKind, error) {
	switch RuleKind(s) {
	case RuleKindVendor, RuleKindCategory:
		return RuleKind(s), nil
	}
	return "", fmt.Errorf("unknown rule kind %q (expected vendor or category)", s)
}

// Rule maps a case-insensitive description keyword to a vendor or category
// name. Vendor and category rules share this shape; Kind says which field
// Value targets.
type Rule struct {
	ID       int64    `json:"id" yaml:"id,omitempty"`
	Keyword  string   `json:"keyword" yaml:"keyword"`
	Value    string   `json:"value" yaml:"value"`
	Priority int      `json:"priority" yaml:"priority"`
	Kind     RuleKind `json:"kind" yaml:"-"`
}

// CurrentValue returns the field of t that rules of kind k derive.
func (k RuleKind) CurrentValue(t Transaction) *string {
	if k == RuleKindCategory {
		return t.CategoryName
	}
	return t.VendorName
}

// RuleChangePreview describes one transaction a rule set would change.
type RuleChangePreview struct {
	TransactionID int64   `json:"transactionId"`
	Description   string  `json:"description"`
	OldValue      *string `json:"oldValue"`
	NewValue      string  `json:"newValue"`
}
