package domain

import (
	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction for reporting.
type TransactionType string

const (
	TypeIncome      TransactionType = "INCOME"
	TypeExpense     TransactionType = "EXPENSE"
	TypeTransfer    TransactionType = "TRANSFER"
	TypeTransferIn  TransactionType = "TRANSFER_IN"
	TypeTransferOut TransactionType = "TRANSFER_OUT"
)

// IsTransfer reports whether t moves money between the user's own accounts.
// Transfers never count towards income or expense totals.
func (t TransactionType) IsTransfer() bool {
	switch t {
	case TypeTransfer, TypeTransferIn, TypeTransferOut:
		return true
	}
	return false
}

// Transaction represents one transaction as returned by the finance backend.
// The backend owns every field; this module only reads them or proposes
// partial updates through the bulk endpoint.
type Transaction struct {
	ID                 int64           `json:"id"`
	Date               string          `json:"date"` // ISO 8601, "YYYY-MM-DD"
	Amount             decimal.Decimal `json:"amount"`
	Description        *string         `json:"description"`
	VendorName         *string         `json:"vendorName"`
	OriginalVendorName *string         `json:"originalVendorName"`
	CategoryName       *string         `json:"categoryName"`
	Type               TransactionType `json:"type"`
	AccountID          int64           `json:"accountId"`
	AccountName        string          `json:"accountName,omitempty"`
}

// TransactionFilter narrows a transaction listing. Zero values are not sent.
type TransactionFilter struct {
	AccountID    *int64           `json:"accountId,omitempty"`
	Type         TransactionType  `json:"type,omitempty"`
	Description  string           `json:"description,omitempty"`
	CategoryName string           `json:"categoryName,omitempty"`
	VendorName   string           `json:"vendorName,omitempty"`
	MinAmount    *decimal.Decimal `json:"minAmount,omitempty"`
	MaxAmount    *decimal.Decimal `json:"maxAmount,omitempty"`
	StartDate    string           `json:"startDate,omitempty"`
	EndDate      string           `json:"endDate,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f TransactionFilter) IsZero() bool {
	return f.AccountID == nil && f.Type == "" && f.Description == "" &&
		f.CategoryName == "" && f.VendorName == "" && f.MinAmount == nil &&
		f.MaxAmount == nil && f.StartDate == "" && f.EndDate == ""
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
