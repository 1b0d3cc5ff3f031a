package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/rules"
)

// previewLimit bounds the changes printed before the confirmation prompt.
const previewLimit = 20

func runApplyRules(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("apply-rules", flag.ExitOnError)
	kindStr := fs.String("kind", "vendor", "Rule kind: vendor or category")
	yes := fs.Bool("yes", false, "Apply without asking for confirmation")
	useFilter := fs.Bool("saved-filter", false, "Only consider transactions matching the saved filter")
	server := fs.Bool("server", false, "Let the backend plan and apply category rules")
	fs.Parse(os.Args[2:])

	kind, err := domain.ParseRuleKind(*kindStr)
	if err != nil {
		return fmt.Errorf("invalid --kind: %w", err)
	}
	if *server && kind != domain.RuleKindCategory {
		return errors.New("--server only applies to category rules")
	}

	a, ctx, done, err := setup(cfg, log, 10*time.Minute)
	if err != nil {
		return err
	}
	defer done()

	if *server {
		return applyCategoryRulesOnServer(ctx, a.Client, *yes)
	}

	applier := a.Applier()
	if *useFilter {
		filter, err := a.Prefs.LoadFilter(ctx)
		if err != nil {
			return fmt.Errorf("loading saved filter: %w", err)
		}
		applier.Filter = filter
	}

	confirm := rules.AutoConfirm
	if !*yes {
		confirm = promptConfirm(os.Stdin, os.Stdout)
	}

	result, err := applier.Run(ctx, kind, confirm)
	if err != nil {
		return fmt.Errorf("applying %s rules: %w", kind, err)
	}

	switch {
	case result.NoChanges:
		fmt.Printf("No transactions need updating. %d transactions checked.\n", result.Scanned)
	case !result.Confirmed:
		fmt.Println("Cancelled. No transactions were changed.")
	default:
		fmt.Printf("Updated %d of %d transactions.\n", result.Updated, result.Scanned)
	}
	return nil
}

// serverRuleApplier previews and applies category rules on the backend.
type serverRuleApplier interface {
	PreviewCategoryRules(ctx context.Context) ([]domain.RuleChangePreview, error)
	ApplyCategoryRules(ctx context.Context) error
}

func applyCategoryRulesOnServer(ctx context.Context, client serverRuleApplier, yes bool) error {
	previews, err := client.PreviewCategoryRules(ctx)
	if err != nil {
		return fmt.Errorf("previewing category rules: %w", err)
	}
	if len(previews) == 0 {
		fmt.Println("No transactions need updating.")
		return nil
	}

	changes := make([]rules.Change, len(previews))
	for i, p := range previews {
		changes[i] = rules.Change{
			Kind:        domain.RuleKindCategory,
			Transaction: domain.Transaction{ID: p.TransactionID, Description: domain.StrPtr(p.Description)},
			OldValue:    p.OldValue,
			NewValue:    p.NewValue,
		}
	}
	analysis := &rules.Analysis{
		Kind:        domain.RuleKindCategory,
		Scanned:     len(previews),
		Changes:     changes,
		LargeUpdate: len(changes) > rules.DefaultLargeUpdateThreshold,
	}

	if !yes {
		ok, err := promptConfirm(os.Stdin, os.Stdout)(ctx, analysis)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled. No transactions were changed.")
			return nil
		}
	}

	if err := client.ApplyCategoryRules(ctx); err != nil {
		return fmt.Errorf("applying category rules: %w", err)
	}
	fmt.Printf("Applied category rules to %d transactions.\n", len(changes))
	return nil
}

// promptConfirm prints a preview of the analysis to out and reads a yes/no
// answer from in. Anything other than y or yes declines.
func promptConfirm(in io.Reader, out io.Writer) rules.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, analysis *rules.Analysis) (bool, error) {
		printPreview(out, analysis)

		if analysis.LargeUpdate {
			fmt.Fprintf(out, "\nWarning: this will update %d transactions.\n", len(analysis.Changes))
		}
		fmt.Fprintf(out, "Apply %s rules to %d transactions? [y/N] ", analysis.Kind, len(analysis.Changes))

		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("reading answer: %w", err)
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

func printPreview(out io.Writer, analysis *rules.Analysis) {
	fmt.Fprintf(out, "%d of %d transactions would change:\n", len(analysis.Changes), analysis.Scanned)
	for i, p := range analysis.Previews() {
		if i == previewLimit {
			fmt.Fprintf(out, "  ... and %d more\n", len(analysis.Changes)-previewLimit)
			break
		}
		old := domain.StringValue(p.OldValue)
		if old == "" {
			old = "(none)"
		}
		fmt.Fprintf(out, "  #%d %-40.40s %s -> %s\n", p.TransactionID, p.Description, old, p.NewValue)
	}
}

func runRulesExport(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("rules-export", flag.ExitOnError)
	kindStr := fs.String("kind", "vendor", "Rule kind: vendor or category")
	out := fs.String("out", "", "Output YAML file (defaults to stdout)")
	fs.Parse(os.Args[2:])

	kind, err := domain.ParseRuleKind(*kindStr)
	if err != nil {
		return fmt.Errorf("invalid --kind: %w", err)
	}

	a, ctx, done, err := setup(cfg, log, time.Minute)
	if err != nil {
		return err
	}
	defer done()

	ruleSet, err := a.Client.FetchRules(ctx, kind)
	if err != nil {
		return fmt.Errorf("fetching %s rules: %w", kind, err)
	}

	if *out == "" {
		return rules.WriteYAML(os.Stdout, kind, ruleSet)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := rules.WriteYAML(f, kind, ruleSet); err != nil {
		f.Close()
		return fmt.Errorf("writing rules: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	fmt.Printf("Exported %d %s rules to %s\n", len(ruleSet), kind, *out)
	return nil
}

func runRulesImport(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("rules-import", flag.ExitOnError)
	in := fs.String("in", "", "YAML file written by rules-export (required)")
	replace := fs.Bool("replace", false, "Delete existing rules of the same kind first")
	fs.Parse(os.Args[2:])

	if *in == "" {
		return errors.New("--in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("opening rules file: %w", err)
	}
	file, err := rules.ReadYAML(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("invalid rules file %s: %w", *in, err)
	}

	a, ctx, done, err := setup(cfg, log, 5*time.Minute)
	if err != nil {
		return err
	}
	defer done()

	existing, err := a.Client.FetchRules(ctx, file.Kind)
	if err != nil {
		return fmt.Errorf("fetching %s rules: %w", file.Kind, err)
	}

	if *replace {
		for _, r := range existing {
			if err := a.Client.DeleteRule(ctx, file.Kind, r.ID); err != nil {
				return fmt.Errorf("deleting rule %d: %w", r.ID, err)
			}
		}
		existing = nil
	}

	created, skipped := 0, 0
	for _, r := range file.Rules {
		if hasKeyword(existing, r.Keyword) {
			skipped++
			continue
		}
		if _, err := a.Client.CreateRule(ctx, r); err != nil {
			log.Error().Err(err).Str("keyword", r.Keyword).Msg("Failed to create rule")
			continue
		}
		created++
	}

	fmt.Printf("Created %d %s rules, skipped %d existing keywords.\n", created, file.Kind, skipped)
	return nil
}

func hasKeyword(ruleSet []domain.Rule, keyword string) bool {
	for _, r := range ruleSet {
		if strings.EqualFold(r.Keyword, keyword) {
			return true
		}
	}
	return false
}

func runSuggestRules(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("suggest-rules", flag.ExitOnError)
	create := fs.Bool("create", false, "Create every suggested rule")
	samples := fs.Int("samples", 0, "Maximum number of descriptions sent to the model")
	fs.Parse(os.Args[2:])

	a, ctx, done, err := setup(cfg, log, 5*time.Minute)
	if err != nil {
		return err
	}
	defer done()

	suggester, err := a.Suggester(ctx)
	if err != nil {
		return fmt.Errorf("initializing Gemini client: %w", err)
	}
	if *samples > 0 {
		suggester.MaxSamples = *samples
	}

	existing, err := a.Client.FetchRules(ctx, domain.RuleKindVendor)
	if err != nil {
		return fmt.Errorf("fetching vendor rules: %w", err)
	}

	txns, err := a.Client.FetchAllTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("fetching transactions: %w", err)
	}

	suggestions, err := suggester.SuggestVendorRules(ctx, txns, existing)
	if err != nil {
		return fmt.Errorf("suggesting rules: %w", err)
	}

	if len(suggestions) == 0 {
		fmt.Println("No new vendor rules to suggest.")
		return nil
	}

	for _, s := range suggestions {
		note := ""
		if s.Snapped {
			note = " (existing vendor)"
		}
		fmt.Printf("  %-24s -> %s%s [%d matches]\n", s.Keyword, s.VendorName, note, s.Matches)
	}

	if !*create {
		fmt.Println("\nRun with -create to add these rules.")
		return nil
	}

	created := 0
	for _, s := range suggestions {
		if _, err := a.Client.CreateRule(ctx, s.Rule()); err != nil {
			log.Error().Err(err).Str("keyword", s.Keyword).Msg("Failed to create rule")
			continue
		}
		created++
	}
	fmt.Printf("Created %d vendor rules.\n", created)
	return nil
}
