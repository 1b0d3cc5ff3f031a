package reports

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Amounts are written as JSON numbers so dashboards and jq can sum them
// without parsing strings.

func number(d decimal.Decimal) json.Number { return json.Number(d.String()) }

// MarshalJSON writes every amount as a number.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		Income      json.Number `json:"income"`
		Expense     json.Number `json:"expense"`
		NetSavings  json.Number `json:"netSavings"`
		SavingsRate json.Number `json:"savingsRate"`
	}{
		plain:       plain(s),
		Income:      number(s.Income),
		Expense:     number(s.Expense),
		NetSavings:  number(s.NetSavings),
		SavingsRate: number(s.SavingsRate),
	})
}

// MarshalJSON writes every amount as a number.
func (c CategoryTotal) MarshalJSON() ([]byte, error) {
	type plain CategoryTotal
	return json.Marshal(struct {
		plain
		Total          json.Number `json:"total"`
		AvgTransaction json.Number `json:"avgTransaction"`
	}{plain: plain(c), Total: number(c.Total), AvgTransaction: number(c.AvgTransaction)})
}

// MarshalJSON writes the total as a number.
func (v VendorTotal) MarshalJSON() ([]byte, error) {
	type plain VendorTotal
	return json.Marshal(struct {
		plain
		Total json.Number `json:"total"`
	}{plain: plain(v), Total: number(v.Total)})
}

// MarshalJSON writes every amount as a number.
func (m MonthlyTotal) MarshalJSON() ([]byte, error) {
	type plain MonthlyTotal
	return json.Marshal(struct {
		plain
		Income     json.Number `json:"income"`
		Expense    json.Number `json:"expense"`
		NetSavings json.Number `json:"netSavings"`
	}{
		plain:      plain(m),
		Income:     number(m.Income),
		Expense:    number(m.Expense),
		NetSavings: number(m.NetSavings),
	})
}
