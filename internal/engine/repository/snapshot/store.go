// Package snapshot persists wizard state per session key. Three backends
// share one Store: a JSON file for local runs, SQLite for single-node
// deployments, Postgres for everything else.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"rentora/internal/wizard"
)

type dialect int

const (
	dialectNone dialect = iota
	dialectPostgres
	dialectSQLite
)

type Store struct {
	path string
	db   *sql.DB
	dia  dialect

	loadOnce sync.Once
	mu       sync.RWMutex
	byKey    map[string]wizard.Snapshot

	schemaOnce sync.Once
	schemaErr  error
}

// New returns a file-backed store.
func New(path string) *Store {
	return &Store{path: path, byKey: make(map[string]wizard.Snapshot)}
}

// NewPostgres opens a Postgres-backed store via the pgx stdlib driver.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dia: dialectPostgres}, nil
}

// NewSQLite opens an embedded SQLite store at the given path.
func NewSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite", strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dia: dialectSQLite}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, key string) (wizard.Snapshot, bool, error) {
	if s == nil {
		return wizard.Snapshot{}, false, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return wizard.Snapshot{}, false, fmt.Errorf("snapshot: session key is required")
	}
	if s.db != nil {
		return s.loadDB(ctx, key)
	}
	return s.loadFile(key)
}

func (s *Store) Save(ctx context.Context, key string, snap wizard.Snapshot) error {
	if s == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("snapshot: session key is required")
	}
	if s.db != nil {
		return s.saveDB(ctx, key, snap)
	}
	return s.saveFileEntry(key, snap)
}

func (s *Store) Clear(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if s.db != nil {
		return s.clearDB(ctx, key)
	}
	return s.clearFileEntry(key)
}
