package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rentora/internal/wizard"
)

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		var ddl string
		switch s.dia {
		case dialectPostgres:
			ddl = `
CREATE TABLE IF NOT EXISTS wizard_snapshots (
  session_key TEXT PRIMARY KEY,
  payload JSONB NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
)`
		case dialectSQLite:
			ddl = `
CREATE TABLE IF NOT EXISTS wizard_snapshots (
  session_key TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at TEXT DEFAULT CURRENT_TIMESTAMP
)`
		default:
			s.schemaErr = fmt.Errorf("snapshot: no database dialect configured")
			return
		}
		_, s.schemaErr = s.db.ExecContext(ctx, ddl)
	})
	return s.schemaErr
}

func (s *Store) loadDB(ctx context.Context, key string) (wizard.Snapshot, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return wizard.Snapshot{}, false, err
	}
	var query string
	switch s.dia {
	case dialectPostgres:
		query = `SELECT payload FROM wizard_snapshots WHERE session_key = $1`
	default:
		query = `SELECT payload FROM wizard_snapshots WHERE session_key = ?`
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return wizard.Snapshot{}, false, nil
	}
	if err != nil {
		return wizard.Snapshot{}, false, err
	}
	var snap wizard.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return wizard.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *Store) saveDB(ctx context.Context, key string, snap wizard.Snapshot) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	var query string
	switch s.dia {
	case dialectPostgres:
		query = `
INSERT INTO wizard_snapshots (session_key, payload, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_key)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`
	default:
		query = `
INSERT INTO wizard_snapshots (session_key, payload, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (session_key)
DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`
	}
	_, err = s.db.ExecContext(ctx, query, key, string(payload))
	return err
}

func (s *Store) clearDB(ctx context.Context, key string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	var query string
	switch s.dia {
	case dialectPostgres:
		query = `DELETE FROM wizard_snapshots WHERE session_key = $1`
	default:
		query = `DELETE FROM wizard_snapshots WHERE session_key = ?`
	}
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}
