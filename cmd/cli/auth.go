package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/domain"
)

func runLogin(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	token := fs.String("token", "", "Bearer token issued by the backend")
	user := fs.String("user", "", "Username")
	pass := fs.String("pass", os.Getenv("FINANCE_PASSWORD"), "Password (or set FINANCE_PASSWORD env)")
	fs.Parse(os.Args[2:])

	if *token == "" && (*user == "" || *pass == "") {
		return errors.New("usage: finance login -token TOKEN | -user NAME -pass PASSWORD")
	}

	a, ctx, done, err := setup(cfg, log, time.Minute)
	if err != nil {
		return err
	}
	defer done()

	if *token == "" {
		issued, err := a.Client.Authenticate(ctx, *user, *pass)
		if err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		*token = issued
	}

	if err := a.Prefs.SetToken(ctx, *token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	if _, err := a.Client.FetchAccounts(ctx); err != nil {
		return fmt.Errorf("token was stored but the backend rejected it: %w", err)
	}

	fmt.Println("Signed in.")
	return nil
}

func runLogout(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	all := fs.Bool("all", false, "Also forget saved filters and other preferences")
	fs.Parse(os.Args[2:])

	a, ctx, done, err := setup(cfg, log, time.Minute)
	if err != nil {
		return err
	}
	defer done()

	if *all {
		err = a.Prefs.Clear(ctx)
	} else {
		err = a.Prefs.ClearToken(ctx)
	}
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	fmt.Println("Signed out.")
	return nil
}

func runFilter(cfg *config.Config, log zerolog.Logger) error {
	if len(os.Args) < 3 {
		return errors.New("usage: finance filter save|show|clear [options]")
	}
	action := os.Args[2]
	switch action {
	case "save", "show", "clear":
	default:
		return fmt.Errorf("unknown filter action %q: expected save, show or clear", action)
	}

	fs := flag.NewFlagSet("filter "+action, flag.ExitOnError)
	accountID := fs.Int64("account", 0, "Account ID")
	txType := fs.String("type", "", "Transaction type")
	description := fs.String("description", "", "Description contains")
	category := fs.String("category", "", "Category name")
	vendor := fs.String("vendor", "", "Vendor name")
	minAmount := fs.String("min", "", "Minimum amount")
	maxAmount := fs.String("max", "", "Maximum amount")
	start := fs.String("start", "", "Start date in YYYY-MM-DD format")
	end := fs.String("end", "", "End date in YYYY-MM-DD format")
	fs.Parse(os.Args[3:])

	f := domain.TransactionFilter{
		Type:         domain.TransactionType(*txType),
		Description:  *description,
		CategoryName: *category,
		VendorName:   *vendor,
		StartDate:    *start,
		EndDate:      *end,
	}
	if *accountID != 0 {
		f.AccountID = accountID
	}
	var err error
	if f.MinAmount, err = parseAmount(*minAmount); err != nil {
		return fmt.Errorf("invalid -min: %w", err)
	}
	if f.MaxAmount, err = parseAmount(*maxAmount); err != nil {
		return fmt.Errorf("invalid -max: %w", err)
	}

	a, ctx, done, err := setup(cfg, log, time.Minute)
	if err != nil {
		return err
	}
	defer done()

	switch action {
	case "save":
		if err := a.Prefs.SaveFilter(ctx, f); err != nil {
			return fmt.Errorf("saving filter: %w", err)
		}
		fmt.Println("Filter saved.")

	case "show":
		saved, err := a.Prefs.LoadFilter(ctx)
		if err != nil {
			return fmt.Errorf("loading filter: %w", err)
		}
		if saved.IsZero() {
			fmt.Println("No filter saved.")
			return nil
		}
		decimal.MarshalJSONWithoutQuotes = true
		out, err := json.MarshalIndent(saved, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding filter: %w", err)
		}
		fmt.Println(string(out))

	case "clear":
		if err := a.Prefs.ClearFilter(ctx); err != nil {
			return fmt.Errorf("clearing filter: %w", err)
		}
		fmt.Println("Filter cleared.")
	}
	return nil
}

func parseAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
