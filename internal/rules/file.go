package rules

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/finance-client/internal/domain"
)

// RuleSetFile is the on-disk form of a rule snapshot.
type RuleSetFile struct {
	Kind  domain.RuleKind `yaml:"kind"`
	Rules []domain.Rule   `yaml:"rules"`
}

// WriteYAML writes rules of kind in matching order.
func WriteYAML(w io.Writer, kind domain.RuleKind, rules []domain.Rule) error {
	file := RuleSetFile{Kind: kind, Rules: SortRules(rules)}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("WriteYAML: encoding: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("WriteYAML: closing encoder: %w", err)
	}
	return nil
}

// ReadYAML reads a rule snapshot. Every rule needs a keyword and a value;
// keywords and values are trimmed and each rule inherits the file's kind.
func ReadYAML(r io.Reader) (RuleSetFile, error) {
	var file RuleSetFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return RuleSetFile{}, fmt.Errorf("ReadYAML: decoding: %w", err)
	}

	if _, err := domain.ParseRuleKind(string(file.Kind)); err != nil {
		return RuleSetFile{}, fmt.Errorf("ReadYAML: %w", err)
	}

	for i := range file.Rules {
		rule := &file.Rules[i]
		rule.Keyword = strings.TrimSpace(rule.Keyword)
		rule.Value = strings.TrimSpace(rule.Value)
		rule.Kind = file.Kind
		if rule.Keyword == "" || rule.Value == "" {
			return RuleSetFile{}, fmt.Errorf("ReadYAML: rule %d: keyword and value are required", i+1)
		}
	}
	return file, nil
}
