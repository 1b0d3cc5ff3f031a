package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/archive"
	"github.com/dvloznov/finance-client/internal/batchimport"
	"github.com/dvloznov/finance-client/internal/config"
	"github.com/dvloznov/finance-client/internal/domain"
)

func runImport(cfg *config.Config, log zerolog.Logger) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var paths stringList
	fs.Var(&paths, "file", "CSV file to import, local path or gs:// URI (repeatable)")
	accountID := fs.Int64("account", 0, "Account ID for every file (defaults to the detected account)")
	bankStr := fs.String("bank", "", "Bank format for every file: CAPITAL_ONE, DISCOVER, SYNOVUS, STANDARD")
	yes := fs.Bool("yes", false, "Save without asking for confirmation")
	fs.Parse(os.Args[2:])

	paths = append(paths, fs.Args()...)
	if len(paths) == 0 {
		return errors.New("usage: finance import -file PATH [-file PATH...] [-account ID] [-bank FORMAT]")
	}

	bank := domain.BankName(strings.ToUpper(*bankStr))
	if *bankStr != "" && !bank.Valid() {
		return fmt.Errorf("unsupported -bank %q", *bankStr)
	}

	a, ctx, done, err := setup(cfg, log, 15*time.Minute)
	if err != nil {
		return err
	}
	defer done()

	files, err := readImportFiles(ctx, paths)
	if err != nil {
		return fmt.Errorf("reading import files: %w", err)
	}

	accounts, err := a.Client.FetchAccounts(ctx)
	if err != nil {
		return fmt.Errorf("fetching accounts: %w", err)
	}

	coord, err := a.Coordinator(ctx)
	if err != nil {
		return fmt.Errorf("initializing import archive: %w", err)
	}

	session := coord.NewSession(accounts)
	defer session.Close()

	skipped, err := session.AddFiles(files)
	if err != nil {
		return fmt.Errorf("queueing files: %w", err)
	}
	for _, name := range skipped {
		fmt.Printf("Skipping duplicate file name %s\n", name)
	}

	for i, it := range session.Items() {
		var err error
		switch {
		case *accountID != 0 && *bankStr != "":
			err = session.SetSelection(i, *accountID, &bank)
		case *accountID != 0:
			err = session.SetAccount(i, *accountID)
		case *bankStr != "":
			err = session.SetBank(i, bank)
		}
		if err != nil {
			return fmt.Errorf("selecting account for %s: %w", it.FileName, err)
		}
	}

	if unresolved := unresolvedFiles(session.Items()); len(unresolved) > 0 {
		fmt.Println("Choose an account and bank format with -account and -bank for:")
		for _, name := range unresolved {
			fmt.Printf("  %s\n", name)
		}
		return fmt.Errorf("%d files need an account and bank format", len(unresolved))
	}

	upload, err := session.UploadAndPreview(ctx)
	for _, it := range session.Items() {
		if it.Error != "" {
			fmt.Printf("  %-40s error: %s\n", it.FileName, it.Error)
			continue
		}
		fmt.Printf("  %-40s %d transactions\n", it.FileName, len(it.Previews))
	}
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}

	if !*yes && !confirmSave(upload) {
		fmt.Println("Cancelled. Nothing was saved.")
		return nil
	}

	saved, err := session.SaveTransactions(ctx)
	for _, it := range session.Items() {
		switch {
		case it.Message != "":
			fmt.Printf("  %s: %s\n", it.FileName, it.Message)
		case it.Error != "":
			fmt.Printf("  %s: %s\n", it.FileName, it.Error)
		}
	}
	if err != nil {
		return fmt.Errorf("saving transactions: %w", err)
	}

	fmt.Printf("Saved %d files, %d failed.\n", saved.Saved, saved.Failed)
	if saved.Failed > 0 {
		return fmt.Errorf("%d of %d files failed to save", saved.Failed, saved.Saved+saved.Failed)
	}
	return nil
}

func confirmSave(upload batchimport.UploadResult) bool {
	fmt.Printf("Save %d previewed files? [y/N] ", upload.Uploaded)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// readImportFiles loads every path. gs:// URIs are read from Cloud Storage,
// typically a file archived by an earlier import.
func readImportFiles(ctx context.Context, paths []string) ([]batchimport.File, error) {
	var archiver *archive.Archiver

	files := make([]batchimport.File, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "gs://") {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", p, err)
			}
			files = append(files, batchimport.File{Name: filepath.Base(p), Data: data})
			continue
		}

		if archiver == nil {
			store, err := archive.NewGCSStore(ctx)
			if err != nil {
				return nil, err
			}
			defer store.Close()
			archiver = archive.New(store, "")
		}
		data, err := archiver.Fetch(ctx, p)
		if err != nil {
			return nil, err
		}
		files = append(files, batchimport.File{Name: archive.FileName(p), Data: data})
	}
	return files, nil
}

func unresolvedFiles(items []batchimport.Item) []string {
	var names []string
	for i := range items {
		if !items[i].Resolved() {
			names = append(names, items[i].FileName)
		}
	}
	return names
}
