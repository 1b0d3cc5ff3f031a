package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/rules"
)

// MockGenerator is a mock implementation of Generator for testing.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "[]", nil
}

func desc(d string) domain.Transaction {
	return domain.Transaction{Description: domain.StrPtr(d)}
}

func TestSuggestVendorRules(t *testing.T) {
	txns := []domain.Transaction{
		desc("STARBUCKS #1234 SEATTLE"),
		desc("starbucks #99 portland"),
		desc("SQ *BLUE BOTTLE COFFEE"),
		desc("SHELL OIL 5551"),
		{Description: domain.StrPtr("AMZN MKTP US"), VendorName: domain.StrPtr("Amazon")},
		{Description: nil},
	}
	existing := []domain.Rule{{Keyword: "SHELL", Value: "Shell", Kind: domain.RuleKindVendor}}

	var prompt string
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, p string) (string, error) {
			prompt = p
			return "```json\n" + `[
				{"keyword": "starbucks", "vendorName": "Starbucks"},
				{"keyword": "BLUE BOTTLE", "vendorName": "Blue Bottle Coffee"},
				{"keyword": "AMZN", "vendorName": "Amazn"},
				{"keyword": "NETFLIX", "vendorName": "Netflix"},
				{"keyword": "STARBUCKS", "vendorName": "Starbucks Coffee"},
				{"keyword": "", "vendorName": "Empty"}
			]` + "\n```", nil
		},
	}

	got, err := NewSuggester(gen).SuggestVendorRules(context.Background(), txns, existing)
	if err != nil {
		t.Fatalf("SuggestVendorRules failed: %v", err)
	}

	if strings.Contains(prompt, "SHELL OIL") {
		t.Error("descriptions matched by an existing rule must not be sampled")
	}
	if !strings.Contains(prompt, "- Amazon") || !strings.Contains(prompt, "- Shell") {
		t.Error("expected existing vendor names in prompt")
	}

	want := []Suggestion{
		{Keyword: "STARBUCKS", VendorName: "Starbucks", Matches: 2},
		{Keyword: "AMZN", VendorName: "Amazon", Matches: 1, Snapped: true},
		{Keyword: "BLUE BOTTLE", VendorName: "Blue Bottle Coffee", Matches: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d suggestions, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("suggestion %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if r := got[0].Rule(); r.Kind != domain.RuleKindVendor || r.Keyword != "STARBUCKS" || r.Value != "Starbucks" {
		t.Errorf("unexpected rule %+v", r)
	}
}

func TestSuggestVendorRules_AllCovered(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, p string) (string, error) {
			t.Error("model must not be called when nothing is unmatched")
			return "", nil
		},
	}
	existing := []domain.Rule{{Keyword: "SHELL", Value: "Shell"}}

	got, err := NewSuggester(gen).SuggestVendorRules(context.Background(), []domain.Transaction{desc("Shell 1")}, existing)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestSuggestVendorRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		gen  *MockGenerator
	}{
		{"model error", &MockGenerator{GenerateFunc: func(ctx context.Context, p string) (string, error) {
			return "", errors.New("quota exceeded")
		}}},
		{"invalid json", &MockGenerator{GenerateFunc: func(ctx context.Context, p string) (string, error) {
			return "I could not find any merchants.", nil
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSuggester(tt.gen).SuggestVendorRules(context.Background(), []domain.Transaction{desc("X")}, nil)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestUnmatchedDescriptions(t *testing.T) {
	txns := []domain.Transaction{
		desc("b store"), desc("A STORE"), desc("B STORE"), desc("  "), desc("c store"),
	}

	got := UnmatchedDescriptions(txns, rules.NewMatcher(nil), 2)
	if len(got) != 2 || got[0] != "B STORE" || got[1] != "A STORE" {
		t.Errorf("unexpected samples %v", got)
	}
}

func TestSnapVendor(t *testing.T) {
	known := []string{"Amazon", "Starbucks", "Target"}

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"exact ignoring case", "STARBUCKS", "Starbucks", true},
		{"one edit", "Amazn", "Amazon", true},
		{"too far", "Walmart", "", false},
		{"empty name", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SnapVendor(tt.in, known)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("SnapVendor(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n[1]\n```", "[1]"},
		{"chatter", "Here you go:\n[1, 2]\nThanks", "[1, 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON = %q, want %q", got, tt.want)
			}
		})
	}
}
