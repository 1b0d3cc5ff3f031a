package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TransactionPreview is a parsed but unsaved row of an uploaded CSV file.
type TransactionPreview struct {
	Date              string          `json:"date"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Type              TransactionType `json:"type"`
	SuggestedCategory *string         `json:"suggestedCategory"`
	VendorName        *string         `json:"vendorName"`
}

// TransactionFormData is the write model of a transaction, used both to
// create transactions and as an element of a bulk update.
type TransactionFormData struct {
	ID           *int64          `json:"id,omitempty"`
	Date         string          `json:"date"`
	Type         TransactionType `json:"type"`
	AccountID    int64           `json:"accountId"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description,omitempty"`
	VendorName   string          `json:"vendorName,omitempty"`
	CategoryName string          `json:"categoryName,omitempty"`
}

// MarshalJSON writes Amount as a JSON number; the backend rejects quoted
// amounts.
func (f TransactionFormData) MarshalJSON() ([]byte, error) {
	type plain TransactionFormData
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amount"`
	}{plain: plain(f), Amount: json.Number(f.Amount.String())})
}

// FormData converts t into its write model, keeping every field.
func (t Transaction) FormData() TransactionFormData {
	id := t.ID
	return TransactionFormData{
		ID:           &id,
		Date:         t.Date,
		Type:         t.Type,
		AccountID:    t.AccountID,
		Amount:       t.Amount,
		Description:  StringValue(t.Description),
		VendorName:   StringValue(t.VendorName),
		CategoryName: StringValue(t.CategoryName),
	}
}

// SaveTransactionRequest persists previewed rows of one imported file.
// FileHash lets the backend reject a file that was already imported.
type SaveTransactionRequest struct {
	Transactions []TransactionFormData `json:"transactions"`
	FileName     string                `json:"fileName"`
	FileHash     string                `json:"fileHash"`
}
