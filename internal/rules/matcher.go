// Package rules derives vendor and category names from transaction
// descriptions and applies a rule set across every transaction.
package rules

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/finance-client/internal/domain"
)

// SortRules returns a copy of rules in matching order: priority descending,
// then keyword length descending. The sort is stable so rules that tie on
// both keep their input order.
func SortRules(rules []domain.Rule) []domain.Rule {
	sorted := make([]domain.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return utf8.RuneCountInString(sorted[i].Keyword) > utf8.RuneCountInString(sorted[j].Keyword)
	})
	return sorted
}

type compiledRule struct {
	keyword string // upper-cased
	value   string
}

// Matcher resolves the single winning rule for a description. It is
// immutable after construction and safe for concurrent use.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher sorts and normalizes rules once so repeated matches over large
// transaction sets do not re-sort.
func NewMatcher(rules []domain.Rule) *Matcher {
	sorted := SortRules(rules)
	compiled := make([]compiledRule, len(sorted))
	for i, r := range sorted {
		compiled[i] = compiledRule{keyword: strings.ToUpper(r.Keyword), value: r.Value}
	}
	return &Matcher{rules: compiled}
}

// Match returns the value of the first rule, in matching order, whose
// keyword is a case-insensitive substring of description. Substrings are not
// word-boundary aware: "GAS" matches "VEGAS". An empty description never
// matches.
func (m *Matcher) Match(description string) (string, bool) {
	if description == "" {
		return "", false
	}

	upper := strings.ToUpper(description)
	for _, r := range m.rules {
		if strings.Contains(upper, r.keyword) {
			return r.value, true
		}
	}
	return "", false
}

// MatchPtr is Match for a nullable description, returning nil when nothing
// matches.
func (m *Matcher) MatchPtr(description *string) *string {
	if description == nil {
		return nil
	}
	if v, ok := m.Match(*description); ok {
		return &v
	}
	return nil
}

// Len returns the number of rules.
func (m *Matcher) Len() int { return len(m.rules) }

// Match is a convenience for a one-off match of description against rules.
func Match(description *string, rules []domain.Rule) *string {
	return NewMatcher(rules).MatchPtr(description)
}
