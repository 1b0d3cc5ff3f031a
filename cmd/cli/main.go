package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/app"
	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, ok := commands[os.Args[1]]
	switch {
	case ok:
		if err := cmd(cfg, log); err != nil {
			log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		}
	case os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// command runs one subcommand. Resources it opens are closed before it
// returns, so main may exit on the error.
type command func(cfg *config.Config, log zerolog.Logger) error

var commands = map[string]command{
	"apply-rules":   runApplyRules,
	"rules-export":  runRulesExport,
	"rules-import":  runRulesImport,
	"suggest-rules": runSuggestRules,
	"report":        runReport,
	"import":        runImport,
	"login":         runLogin,
	"logout":        runLogout,
	"filter":        runFilter,
}

func printUsage() {
	fmt.Println("Finance Client CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  finance <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  apply-rules    Re-apply vendor or category rules to every transaction")
	fmt.Println("  rules-export   Write a rule set to a YAML file")
	fmt.Println("  rules-import   Create the rules of a YAML file")
	fmt.Println("  suggest-rules  Ask Gemini for vendor rules covering unmatched descriptions")
	fmt.Println("  report         Print income, expense and spending totals for a date range")
	fmt.Println("  import         Preview and save one or more bank CSV files")
	fmt.Println("  login          Sign in to the finance backend")
	fmt.Println("  logout         Forget the stored token")
	fmt.Println("  filter         Save, show or clear the default transaction filter")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'finance <command> -h' for more information on a command.")
}

// setup validates the configuration and opens the application. The returned
// context carries log and expires after timeout; done releases both.
func setup(cfg *config.Config, log zerolog.Logger, timeout time.Duration) (*app.App, context.Context, context.CancelFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = logger.WithContext(ctx, log)

	return a, ctx, func() {
		cancel()
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close application")
		}
	}, nil
}

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}
