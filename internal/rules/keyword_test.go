package rules

import (
	"testing"

	"github.com/dvloznov/finance-client/internal/domain"
)

func TestSuggestKeyword(t *testing.T) {
	tests := []struct {
		name        string
		original    *string
		description *string
		want        string
	}{
		{name: "store and reference numbers", original: domain.StrPtr("Shell Oil 57442 #12"), want: "SHELL OIL"},
		{name: "falls back to description", description: domain.StrPtr("starbucks store 00571"), want: "STARBUCKS STORE"},
		{name: "blank original uses description", original: domain.StrPtr("  "), description: domain.StrPtr("Netflix.com"), want: "NETFLIX.COM"},
		{name: "alphanumeric reference", original: domain.StrPtr("AMAZON MKTPL 1A2B3C4"), want: "AMAZON MKTPL"},
		{name: "keeps single token", original: domain.StrPtr("7-ELEVEN"), want: "7-ELEVEN"},
		{name: "keeps words", original: domain.StrPtr("whole foods market"), want: "WHOLE FOODS MARKET"},
		{name: "nothing to suggest", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestKeyword(domain.Transaction{OriginalVendorName: tt.original, Description: tt.description})
			if got != tt.want {
				t.Errorf("SuggestKeyword() = %q, want %q", got, tt.want)
			}
		})
	}
}
