package reports

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestReport_AmountsAreJSONNumbers(t *testing.T) {
	// Independent of the package-level quoting switch.
	prev := decimal.MarshalJSONWithoutQuotes
	decimal.MarshalJSONWithoutQuotes = false
	defer func() { decimal.MarshalJSONWithoutQuotes = prev }()

	r := Range{Start: civil.Date{Year: 2024, Month: 1, Day: 1}, End: civil.Date{Year: 2024, Month: 2, Day: 29}}
	report := Build(r, sample())

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var doc struct {
		Summary    map[string]any   `json:"summary"`
		Categories []map[string]any `json:"categories"`
		Vendors    []map[string]any `json:"vendors"`
		Months     []map[string]any `json:"months"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(doc.Categories) == 0 || len(doc.Vendors) == 0 || len(doc.Months) == 0 {
		t.Fatalf("expected every section to be populated: %s", raw)
	}

	check := func(section string, obj map[string]any, fields ...string) {
		t.Helper()
		for _, f := range fields {
			if _, ok := obj[f].(float64); !ok {
				t.Errorf("%s.%s = %#v, want a JSON number", section, f, obj[f])
			}
		}
	}
	check("summary", doc.Summary, "income", "expense", "netSavings", "savingsRate")
	check("categories", doc.Categories[0], "total", "avgTransaction")
	check("vendors", doc.Vendors[0], "total")
	check("months", doc.Months[0], "income", "expense", "netSavings")

	if doc.Summary["transactionCount"] != float64(7) {
		t.Errorf("transactionCount = %v, want 7", doc.Summary["transactionCount"])
	}

	var back Report
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("decoding report failed: %v", err)
	}
	if !back.Summary.Income.Equal(report.Summary.Income) || !back.Months[0].NetSavings.Equal(report.Months[0].NetSavings) {
		t.Errorf("amounts changed through JSON: %+v", back.Summary)
	}
}
