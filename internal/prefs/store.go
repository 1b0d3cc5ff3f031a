// Package prefs is a small local key/value store for client state that
// outlives a process: the bearer token and saved transaction filters.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/finance-client/internal/domain"
)

const (
	tokenKey  = "auth_token"
	filterKey = "transaction_filter"
)

// Store persists preferences in a SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the store at dbPath and applies migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("Open: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("Open: open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value of key and whether it was set.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("Get: %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("Set: %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("Delete: %s: %w", key, err)
	}
	return nil
}

// Clear removes every preference.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences`); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

// Token returns the stored bearer token, or "" when signed out. Store
// satisfies financeapi.TokenSource.
func (s *Store) Token(ctx context.Context) (string, error) {
	token, _, err := s.Get(ctx, tokenKey)
	return token, err
}

// SetToken stores the bearer token.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.Set(ctx, tokenKey, token)
}

// ClearToken signs out.
func (s *Store) ClearToken(ctx context.Context) error {
	return s.Delete(ctx, tokenKey)
}

// SaveFilter remembers the transaction list filter.
func (s *Store) SaveFilter(ctx context.Context, f domain.TransactionFilter) error {
	buf, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("SaveFilter: encoding: %w", err)
	}
	return s.Set(ctx, filterKey, string(buf))
}

// LoadFilter returns the saved filter, or the zero filter when none is
// saved.
func (s *Store) LoadFilter(ctx context.Context) (domain.TransactionFilter, error) {
	raw, ok, err := s.Get(ctx, filterKey)
	if err != nil || !ok {
		return domain.TransactionFilter{}, err
	}

	var f domain.TransactionFilter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return domain.TransactionFilter{}, fmt.Errorf("LoadFilter: decoding: %w", err)
	}
	return f, nil
}

// ClearFilter forgets the saved filter.
func (s *Store) ClearFilter(ctx context.Context) error {
	return s.Delete(ctx, filterKey)
}
