package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `CREATE TABLE IF NOT EXISTS options (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLStore keeps options in a SQLite table, one row per option name.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// OpenSQLStore opens (and creates if needed) the SQLite database at path.
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("SQLite database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating options table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func readOption(ctx context.Context, q querier, name string, dst any) (bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading option %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("decoding option %s: %w", name, err)
	}
	return true, nil
}

func writeOption(ctx context.Context, q querier, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding option %s: %w", name, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO options (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, string(raw))
	if err != nil {
		return fmt.Errorf("writing option %s: %w", name, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context) (Settings, error) {
	var out Settings
	if _, err := readOption(ctx, s.db, OptionSettings, &out); err != nil {
		return Settings{}, err
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, mutate func(*Settings)) (Settings, Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Settings{}, Settings{}, fmt.Errorf("beginning settings update: %w", err)
	}
	defer tx.Rollback()

	var old Settings
	if _, err := readOption(ctx, tx, OptionSettings, &old); err != nil {
		return Settings{}, Settings{}, err
	}
	next := old.Clone()
	mutate(&next)

	if err := writeOption(ctx, tx, OptionSettings, next); err != nil {
		return Settings{}, Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return Settings{}, Settings{}, fmt.Errorf("committing settings update: %w", err)
	}
	return old, next.Clone(), nil
}

func (s *SQLStore) GoalIDs(ctx context.Context) (GoalIDCache, error) {
	ids := GoalIDCache{}
	if _, err := readOption(ctx, s.db, OptionGoalIDs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLStore) SaveGoalIDs(ctx context.Context, ids GoalIDCache) error {
	return writeOption(ctx, s.db, OptionGoalIDs, ids)
}

func (s *SQLStore) Option(ctx context.Context, name string, dst any) (bool, error) {
	return readOption(ctx, s.db, name, dst)
}

func (s *SQLStore) SetOption(ctx context.Context, name string, v any) error {
	return writeOption(ctx, s.db, name, v)
}
