// Package suggest proposes vendor rules for transactions that no existing
// rule matches, using a language model and fuzzy vendor-name matching.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/rules"
)

const (
	// DefaultMaxSamples bounds the descriptions sent to the model.
	DefaultMaxSamples = 50
	// SnapRatio is the largest normalized edit distance at which a suggested
	// vendor name is replaced by an existing one.
	SnapRatio = 0.25
)

// Suggestion is one proposed vendor rule.
type Suggestion struct {
	Keyword    string `json:"keyword"`
	VendorName string `json:"vendorName"`
	// Matches is how many sampled descriptions contain Keyword.
	Matches int `json:"matches"`
	// Snapped is set when VendorName was replaced by an existing vendor.
	Snapped bool `json:"snapped"`
}

// Rule converts the suggestion into a vendor rule with default priority.
func (s Suggestion) Rule() domain.Rule {
	return domain.Rule{Kind: domain.RuleKindVendor, Keyword: s.Keyword, Value: s.VendorName}
}

// Suggester asks a Generator for vendor rules.
type Suggester struct {
	gen        Generator
	MaxSamples int
}

// NewSuggester creates a Suggester.
func NewSuggester(gen Generator) *Suggester {
	return &Suggester{gen: gen, MaxSamples: DefaultMaxSamples}
}

type modelSuggestion struct {
	Keyword    string `json:"keyword"`
	VendorName string `json:"vendorName"`
}

// SuggestVendorRules samples the most frequent descriptions no vendor rule
// matches and asks the model for keyword/vendor pairs. A pair is kept only
// when its keyword occurs in at least one sampled description. Returns nil
// without calling the model when every description is already covered.
func (s *Suggester) SuggestVendorRules(ctx context.Context, transactions []domain.Transaction, existing []domain.Rule) ([]Suggestion, error) {
	log := logger.FromContext(ctx)

	samples := UnmatchedDescriptions(transactions, rules.NewMatcher(existing), s.maxSamples())
	if len(samples) == 0 {
		log.Info().Msg("Every description is covered by a vendor rule")
		return nil, nil
	}

	vendors := knownVendors(transactions, existing)

	raw, err := s.gen.Generate(ctx, buildPrompt(samples, vendors))
	if err != nil {
		return nil, fmt.Errorf("SuggestVendorRules: %w", err)
	}

	var parsed []modelSuggestion
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("SuggestVendorRules: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	seen := make(map[string]bool)
	var out []Suggestion
	for _, p := range parsed {
		keyword := strings.ToUpper(strings.TrimSpace(p.Keyword))
		vendor := strings.TrimSpace(p.VendorName)
		if keyword == "" || vendor == "" || seen[keyword] {
			continue
		}

		matches := 0
		for _, d := range samples {
			if strings.Contains(d, keyword) {
				matches++
			}
		}
		if matches == 0 {
			log.Debug().Str("keyword", keyword).Msg("Dropping suggestion that matches no description")
			continue
		}
		seen[keyword] = true

		sug := Suggestion{Keyword: keyword, VendorName: vendor, Matches: matches}
		if snapped, ok := SnapVendor(vendor, vendors); ok && snapped != vendor {
			sug.VendorName = snapped
			sug.Snapped = true
		}
		out = append(out, sug)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Matches != out[j].Matches {
			return out[i].Matches > out[j].Matches
		}
		return out[i].Keyword < out[j].Keyword
	})

	log.Info().
		Int("samples", len(samples)).
		Int("model_suggestions", len(parsed)).
		Int("kept", len(out)).
		Msg("Generated vendor rule suggestions")

	return out, nil
}

func (s *Suggester) maxSamples() int {
	if s.MaxSamples <= 0 {
		return DefaultMaxSamples
	}
	return s.MaxSamples
}

// UnmatchedDescriptions returns distinct upper-cased descriptions that m
// does not match, most frequent first, at most limit entries.
func UnmatchedDescriptions(transactions []domain.Transaction, m *rules.Matcher, limit int) []string {
	counts := make(map[string]int)
	for _, t := range transactions {
		d := strings.ToUpper(strings.TrimSpace(domain.StringValue(t.Description)))
		if d == "" {
			continue
		}
		if _, ok := m.Match(d); ok {
			continue
		}
		counts[d]++
	}

	out := make([]string, 0, len(counts))
	for d := range counts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// knownVendors collects rule values and transaction vendor names, sorted.
func knownVendors(transactions []domain.Transaction, existing []domain.Rule) []string {
	set := make(map[string]bool)
	for _, r := range existing {
		if v := strings.TrimSpace(r.Value); v != "" {
			set[v] = true
		}
	}
	for _, t := range transactions {
		if v := strings.TrimSpace(domain.StringValue(t.VendorName)); v != "" {
			set[v] = true
		}
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SnapVendor returns the vendor in known closest to name when the edit
// distance divided by the longer name's length is at most SnapRatio.
// Comparison ignores case. Ties go to the earlier entry of known.
func SnapVendor(name string, known []string) (string, bool) {
	target := strings.ToUpper(name)
	best, bestRatio := "", 0.0
	found := false

	for _, v := range known {
		cand := strings.ToUpper(v)
		longest := max(utf8.RuneCountInString(target), utf8.RuneCountInString(cand))
		if longest == 0 {
			continue
		}
		ratio := float64(levenshtein.ComputeDistance(target, cand)) / float64(longest)
		if ratio <= SnapRatio && (!found || ratio < bestRatio) {
			best, bestRatio, found = v, ratio, true
		}
	}

	return best, found
}

func buildPrompt(samples, vendors []string) string {
	var b strings.Builder
	b.WriteString("You create vendor rules for a personal finance app.\n\n")
	b.WriteString("A vendor rule maps a KEYWORD to a clean vendor name. A rule applies when the\n")
	b.WriteString("upper-cased transaction description contains the keyword.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- For the bank descriptions below, propose rules that group them by merchant.\n")
	b.WriteString("- A keyword must be a substring of at least one description, in upper case.\n")
	b.WriteString("- Prefer short keywords without store numbers, dates or reference codes.\n")
	b.WriteString("- Reuse an existing vendor name when one fits.\n\n")

	if len(vendors) > 0 {
		b.WriteString("Existing vendor names:\n")
		for _, v := range vendors {
			b.WriteString("- " + v + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Descriptions:\n")
	for _, d := range samples {
		b.WriteString("- " + d + "\n")
	}

	b.WriteString("\nReturn ONLY valid raw JSON: an array of objects with fields\n")
	b.WriteString("\"keyword\" (string) and \"vendorName\" (string).\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
