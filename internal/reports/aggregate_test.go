package reports

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-client/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tx(date string, typ domain.TransactionType, amount string, category, vendor *string) domain.Transaction {
	return domain.Transaction{
		Date:         date,
		Type:         typ,
		Amount:       dec(amount),
		CategoryName: category,
		VendorName:   vendor,
	}
}

func sample() []domain.Transaction {
	food := domain.StrPtr("Food")
	salary := domain.StrPtr("Salary")
	return []domain.Transaction{
		tx("2024-01-03", domain.TypeExpense, "-50", food, domain.StrPtr("Kroger")),
		tx("2024-01-15", domain.TypeIncome, "3000", salary, domain.StrPtr("Acme Corp")),
		tx("2024-02-02", domain.TypeExpense, "-20.50", food, domain.StrPtr("Kroger")),
		tx("2024-02-10", domain.TypeExpense, "-3500", domain.StrPtr("Rent"), domain.StrPtr("Landlord")),
		tx("2024-02-11", domain.TypeTransfer, "-1000", nil, nil),
		tx("2024-02-12", domain.TypeTransferOut, "-400", food, domain.StrPtr("Kroger")),
		tx("2024-02-13", domain.TypeTransferIn, "400", nil, nil),
		tx("2024-02-20", domain.TypeExpense, "-12", nil, nil),
		tx("2024-02-28", domain.TypeIncome, "3000", salary, domain.StrPtr("Acme Corp")),
		tx("2024-01-20", domain.TypeExpense, "-9.50", domain.StrPtr("Shopping"), domain.StrPtr("Kroger")),
	}
}

func TestByCategory_ExcludesTransfers(t *testing.T) {
	txns := []domain.Transaction{
		tx("2024-03-01", domain.TypeExpense, "-50", domain.StrPtr("Food"), nil),
		tx("2024-03-02", domain.TypeTransfer, "-200", domain.StrPtr("Food"), nil),
	}

	got := ByCategory(txns)

	if len(got) != 1 {
		t.Fatalf("expected 1 category, got %+v", got)
	}
	c := got[0]
	if c.CategoryName != "Food" || !c.Total.Equal(dec("50")) || c.Count != 1 || !c.AvgTransaction.Equal(dec("50")) {
		t.Errorf("unexpected category total: %+v", c)
	}
}

func TestByCategory(t *testing.T) {
	got := ByCategory(sample())

	want := []struct {
		name  string
		total string
		count int
		avg   string
	}{
		{"Salary", "6000", 2, "3000"},
		{"Rent", "3500", 1, "3500"},
		{"Food", "70.5", 2, "35.25"},
		{"Uncategorized", "12", 1, "12"},
		{"Shopping", "9.5", 1, "9.5"},
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d categories, got %+v", len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.CategoryName != w.name || !g.Total.Equal(dec(w.total)) || g.Count != w.count || !g.AvgTransaction.Equal(dec(w.avg)) {
			t.Errorf("position %d: got %s total=%s count=%d avg=%s, want %+v", i, g.CategoryName, g.Total, g.Count, g.AvgTransaction, w)
		}
	}
}

func TestByCategory_IncomeIsSigned(t *testing.T) {
	txns := []domain.Transaction{
		tx("2024-03-01", domain.TypeIncome, "100", domain.StrPtr("Refunds"), nil),
		tx("2024-03-02", domain.TypeIncome, "-30", domain.StrPtr("Refunds"), nil),
	}
	got := ByCategory(txns)
	if len(got) != 1 || !got[0].Total.Equal(dec("70")) {
		t.Errorf("income should be summed signed, got %+v", got)
	}
}

func TestByVendor(t *testing.T) {
	got := ByVendor(sample())

	if len(got) != 4 {
		t.Fatalf("expected 4 vendors, got %+v", got)
	}
	if got[0].VendorName != "Acme Corp" || !got[0].Total.Equal(dec("6000")) {
		t.Errorf("expected Acme Corp first, got %+v", got[0])
	}

	var kroger *VendorTotal
	for i := range got {
		if got[i].VendorName == "Kroger" {
			kroger = &got[i]
		}
	}
	if kroger == nil {
		t.Fatal("Kroger missing")
	}
	if !kroger.Total.Equal(dec("80")) || kroger.Count != 3 {
		t.Errorf("Kroger should exclude the transfer: %+v", kroger)
	}
	if !reflect.DeepEqual(kroger.Categories, []string{"Food", "Shopping"}) {
		t.Errorf("unexpected Kroger categories: %v", kroger.Categories)
	}

	last := got[len(got)-1]
	if last.VendorName != UnknownVendorLabel || !last.Total.Equal(dec("12")) || len(last.Categories) != 0 {
		t.Errorf("expected unknown vendor bucket last, got %+v", last)
	}
}

func TestByMonth(t *testing.T) {
	got := ByMonth(sample())

	if len(got) != 2 {
		t.Fatalf("expected 2 months, got %+v", got)
	}
	jan, feb := got[0], got[1]
	if jan.Month != "2024-01" || !jan.Income.Equal(dec("3000")) || !jan.Expense.Equal(dec("59.5")) || !jan.NetSavings.Equal(dec("2940.5")) {
		t.Errorf("unexpected January: %+v", jan)
	}
	if feb.Month != "2024-02" || !feb.Income.Equal(dec("3000")) || !feb.Expense.Equal(dec("3532.5")) {
		t.Errorf("unexpected February: %+v", feb)
	}
	if !feb.NetSavings.Equal(dec("-532.5")) {
		t.Errorf("expected negative net savings, got %s", feb.NetSavings)
	}
}

func TestByMonth_NetSavingsSign(t *testing.T) {
	txns := []domain.Transaction{
		tx("2024-05-01", domain.TypeIncome, "3000", nil, nil),
		tx("2024-05-09", domain.TypeExpense, "-3500", nil, nil),
	}
	got := ByMonth(txns)
	if len(got) != 1 || !got[0].NetSavings.Equal(dec("-500")) {
		t.Errorf("expected netSavings -500, got %+v", got)
	}
}

func TestMonthKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2024-03-15", "2024-03"},
		{"2024-03-01", "2024-03"},
		{"2024-03", "2024-03"},
		{"2024", "2024"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MonthKey(tt.in); got != tt.want {
			t.Errorf("MonthKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAggregations_OrderIndependent(t *testing.T) {
	base := sample()
	wantCat := fmt.Sprintf("%+v", ByCategory(base))
	wantVendor := fmt.Sprintf("%+v", ByVendor(base))
	wantMonth := fmt.Sprintf("%+v", ByMonth(base))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		shuffled := append([]domain.Transaction(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		if got := fmt.Sprintf("%+v", ByCategory(shuffled)); got != wantCat {
			t.Fatalf("ByCategory depends on input order:\n%s\n%s", got, wantCat)
		}
		if got := fmt.Sprintf("%+v", ByVendor(shuffled)); got != wantVendor {
			t.Fatalf("ByVendor depends on input order:\n%s\n%s", got, wantVendor)
		}
		if got := fmt.Sprintf("%+v", ByMonth(shuffled)); got != wantMonth {
			t.Fatalf("ByMonth depends on input order:\n%s\n%s", got, wantMonth)
		}
	}
}

func TestAggregations_NoTransactionLost(t *testing.T) {
	txns := sample()
	nonTransfers := 0
	for _, t := range txns {
		if !t.Type.IsTransfer() {
			nonTransfers++
		}
	}

	catCount, vendorCount := 0, 0
	for _, c := range ByCategory(txns) {
		catCount += c.Count
	}
	for _, v := range ByVendor(txns) {
		vendorCount += v.Count
	}
	if catCount != nonTransfers || vendorCount != nonTransfers {
		t.Errorf("expected %d counted, got category=%d vendor=%d", nonTransfers, catCount, vendorCount)
	}
}

func TestAggregations_Empty(t *testing.T) {
	if got := ByCategory(nil); len(got) != 0 {
		t.Errorf("expected empty categories, got %+v", got)
	}
	if got := ByVendor(nil); len(got) != 0 {
		t.Errorf("expected empty vendors, got %+v", got)
	}
	if got := ByMonth(nil); len(got) != 0 {
		t.Errorf("expected empty months, got %+v", got)
	}
}
