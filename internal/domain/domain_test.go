package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestTransactionType_IsTransfer(t *testing.T) {
	tests := []struct {
		typ  TransactionType
		want bool
	}{
		{TypeIncome, false},
		{TypeExpense, false},
		{TypeTransfer, true},
		{TypeTransferIn, true},
		{TypeTransferOut, true},
	}
	for _, tt := range tests {
		if got := tt.typ.IsTransfer(); got != tt.want {
			t.Errorf("%s.IsTransfer() = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestParseRuleKind(t *testing.T) {
	if k, err := ParseRuleKind("vendor"); err != nil || k != RuleKindVendor {
		t.Errorf("ParseRuleKind(vendor) = %v, %v", k, err)
	}
	if k, err := ParseRuleKind("category"); err != nil || k != RuleKindCategory {
		t.Errorf("ParseRuleKind(category) = %v, %v", k, err)
	}
	if _, err := ParseRuleKind("merchant"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRuleKind_CurrentValue(t *testing.T) {
	txn := Transaction{VendorName: StrPtr("Amazon"), CategoryName: StrPtr("Shopping")}
	if got := StringValue(RuleKindVendor.CurrentValue(txn)); got != "Amazon" {
		t.Errorf("vendor current value = %q", got)
	}
	if got := StringValue(RuleKindCategory.CurrentValue(txn)); got != "Shopping" {
		t.Errorf("category current value = %q", got)
	}
}

func TestTransaction_DecodeBackendJSON(t *testing.T) {
	body := `{"id":7,"date":"2024-03-15","amount":-42.50,"description":"AMAZON MKTPL",
		"vendorName":null,"originalVendorName":"AMAZON MKTPL*1A2B","categoryName":null,
		"type":"EXPENSE","accountId":3}`

	var txn Transaction
	if err := json.Unmarshal([]byte(body), &txn); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if txn.ID != 7 || txn.AccountID != 3 || txn.Type != TypeExpense {
		t.Errorf("unexpected identity fields: %+v", txn)
	}
	if txn.Amount.String() != "-42.5" {
		t.Errorf("amount = %s, want -42.5", txn.Amount)
	}
	if txn.VendorName != nil {
		t.Errorf("vendorName should be nil, got %q", *txn.VendorName)
	}
	if StringValue(txn.Description) != "AMAZON MKTPL" {
		t.Errorf("description = %q", StringValue(txn.Description))
	}
}

func TestBankName_Valid(t *testing.T) {
	if !BankDiscover.Valid() || !BankStandard.Valid() {
		t.Error("known banks should be valid")
	}
	if BankName("CHASE").Valid() {
		t.Error("unknown bank should not be valid")
	}
}

func TestTransactionFormData_AmountIsNumber(t *testing.T) {
	txn := Transaction{
		ID:          9,
		Date:        "2024-01-02",
		Amount:      mustDecimal(t, "-12.34"),
		Description: StrPtr("SHELL OIL 123"),
		VendorName:  StrPtr("Shell"),
		Type:        TypeExpense,
		AccountID:   2,
	}

	out, err := json.Marshal(txn.FormData())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if amount, ok := decoded["amount"].(float64); !ok || amount != -12.34 {
		t.Errorf("amount should be a JSON number, got %#v in %s", decoded["amount"], out)
	}
	if decoded["id"].(float64) != 9 || decoded["vendorName"] != "Shell" {
		t.Errorf("unexpected form data: %s", out)
	}
	if _, present := decoded["categoryName"]; present {
		t.Errorf("empty categoryName should be omitted: %s", out)
	}
}
