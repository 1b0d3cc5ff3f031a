package batchimport

import (
	"strings"

	"github.com/dvloznov/finance-client/internal/domain"
)

var bankKeywords = []struct {
	keyword string
	bank    domain.BankName
}{
	{"capital one", domain.BankCapitalOne},
	{"capitalone", domain.BankCapitalOne},
	{"capital_one", domain.BankCapitalOne},
	{"capital-one", domain.BankCapitalOne},
	{"discover", domain.BankDiscover},
	{"synovus", domain.BankSynovus},
}

// DetectBank guesses the export format from a file name. The generic
// STANDARD format is never guessed.
func DetectBank(fileName string) *domain.BankName {
	lower := strings.ToLower(fileName)
	for _, k := range bankKeywords {
		if strings.Contains(lower, k.keyword) {
			b := k.bank
			return &b
		}
	}
	return nil
}

// ResolveAccount returns the id of the only account whose preferred format
// is bank. Zero or several matches resolve nothing.
func ResolveAccount(accounts []domain.Account, bank *domain.BankName) *int64 {
	if bank == nil {
		return nil
	}

	var match *int64
	for _, a := range accounts {
		if a.BankName == nil || *a.BankName != *bank {
			continue
		}
		if match != nil {
			return nil
		}
		id := a.ID
		match = &id
	}
	return match
}
