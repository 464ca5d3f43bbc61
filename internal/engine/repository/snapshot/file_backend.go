package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"rentora/internal/wizard"
)

type fileRow struct {
	SessionKey string          `json:"session_key"`
	Snapshot   wizard.Snapshot `json:"snapshot"`
}

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []fileRow
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			if row.SessionKey == "" {
				continue
			}
			s.byKey[row.SessionKey] = row.Snapshot
		}
	})
}

func (s *Store) flushFile() error {
	s.mu.RLock()
	rows := make([]fileRow, 0, len(s.byKey))
	for key, snap := range s.byKey {
		rows = append(rows, fileRow{SessionKey: key, Snapshot: snap})
	}
	s.mu.RUnlock()

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (s *Store) loadFile(key string) (wizard.Snapshot, bool, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	snap, ok := s.byKey[key]
	s.mu.RUnlock()
	return snap, ok, nil
}

func (s *Store) saveFileEntry(key string, snap wizard.Snapshot) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.byKey[key] = snap
	s.mu.Unlock()
	return s.flushFile()
}

func (s *Store) clearFileEntry(key string) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	delete(s.byKey, key)
	s.mu.Unlock()
	return s.flushFile()
}
