package domain

import "github.com/shopspring/decimal"

// BankName identifies the CSV export format of a bank.
type BankName string

const (
	BankCapitalOne BankName = "CAPITAL_ONE"
	BankDiscover   BankName = "DISCOVER"
	BankSynovus    BankName = "SYNOVUS"
	BankStandard   BankName = "STANDARD"
)

// Valid reports whether b is one of the formats the backend can parse.
func (b BankName) Valid() bool {
	switch b {
	case BankCapitalOne, BankDiscover, BankSynovus, BankStandard:
		return true
	}
	return false
}

// Account is a user account. BankName is the account's preferred import
// format, when configured.
type Account struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	BankName       *BankName       `json:"bankName,omitempty"`
}

// Category is a classification label.
type Category struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	ParentID   *int64 `json:"parentId,omitempty"`
	ParentName string `json:"parentName,omitempty"`
}
