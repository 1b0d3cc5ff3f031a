package batchimport

import (
	"testing"

	"github.com/dvloznov/finance-client/internal/domain"
)

func bankPtr(b domain.BankName) *domain.BankName { return &b }

func TestDetectBank(t *testing.T) {
	tests := []struct {
		fileName string
		want     *domain.BankName
	}{
		{"Capital One - March.csv", bankPtr(domain.BankCapitalOne)},
		{"capitalone_2024.csv", bankPtr(domain.BankCapitalOne)},
		{"CAPITAL_ONE.CSV", bankPtr(domain.BankCapitalOne)},
		{"Discover-Statement.csv", bankPtr(domain.BankDiscover)},
		{"synovus checking.csv", bankPtr(domain.BankSynovus)},
		{"standard.csv", nil},
		{"export.csv", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			got := DetectBank(tt.fileName)
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("DetectBank(%q) = %v, want %v", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestResolveAccount(t *testing.T) {
	discover := []domain.Account{{ID: 1, Name: "Discover It", BankName: bankPtr(domain.BankDiscover)}}
	twoCapitalOne := []domain.Account{
		{ID: 1, Name: "Venture", BankName: bankPtr(domain.BankCapitalOne)},
		{ID: 2, Name: "360 Checking", BankName: bankPtr(domain.BankCapitalOne)},
		{ID: 3, Name: "Cash"},
	}

	if got := ResolveAccount(discover, bankPtr(domain.BankDiscover)); got == nil || *got != 1 {
		t.Errorf("expected unique DISCOVER account 1, got %v", got)
	}
	if got := ResolveAccount(twoCapitalOne, bankPtr(domain.BankCapitalOne)); got != nil {
		t.Errorf("ambiguous match should not resolve, got %d", *got)
	}
	if got := ResolveAccount(twoCapitalOne, bankPtr(domain.BankSynovus)); got != nil {
		t.Errorf("no match should not resolve, got %d", *got)
	}
	if got := ResolveAccount(discover, nil); got != nil {
		t.Errorf("undetected bank should not resolve, got %d", *got)
	}
}

func TestFileHash(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		if got := FileHash([]byte(tt.data)); got != tt.want {
			t.Errorf("FileHash(%q) = %s, want %s", tt.data, got, tt.want)
		}
	}
}
