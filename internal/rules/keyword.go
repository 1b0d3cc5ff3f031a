package rules

import (
	"strings"
	"unicode"

	"github.com/dvloznov/finance-client/internal/domain"
)

// SuggestKeyword proposes a rule keyword for a transaction: its original
// vendor name, or its description when that is missing, upper-cased with
// trailing reference tokens removed. "SHELL OIL 57442 #12" becomes
// "SHELL OIL".
func SuggestKeyword(t domain.Transaction) string {
	source := domain.StringValue(t.OriginalVendorName)
	if strings.TrimSpace(source) == "" {
		source = domain.StringValue(t.Description)
	}

	fields := strings.Fields(strings.ToUpper(source))
	for len(fields) > 1 && isReferenceToken(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// isReferenceToken reports whether tok looks like a store number or
// reference ("#1234", "00571", "*8821", "1A2B3C4").
func isReferenceToken(tok string) bool {
	tok = strings.TrimLeft(tok, "#*")
	if tok == "" {
		return true
	}
	digits := 0
	for _, r := range tok {
		if unicode.IsDigit(r) {
			digits++
		} else if !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return digits > 0 && digits*2 >= len(tok)
}
