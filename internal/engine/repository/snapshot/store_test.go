package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"rentora/internal/draft"
	"rentora/internal/wizard"
)

func sample() wizard.Snapshot {
	return wizard.Snapshot{
		Version:   wizard.SnapshotVersion,
		Form:      draft.Form{"title": "2BHK in Noida", "monthly_rent": "15000"},
		Step:      wizard.StepLocation,
		ListingID: "lst_1",
	}
}

func roundTrip(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "sess-1"); err != nil || ok {
		t.Fatalf("empty load: ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, "sess-1", sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, ok, err := s.Load(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if snap.Version != wizard.SnapshotVersion || snap.Step != wizard.StepLocation || snap.ListingID != "lst_1" {
		t.Fatalf("snap = %+v", snap)
	}
	if snap.Form["title"] != "2BHK in Noida" {
		t.Fatalf("form = %+v", snap.Form)
	}
	if err := s.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Load(ctx, "sess-1"); ok {
		t.Fatal("snapshot survived Clear")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "snapshots.json"))
	roundTrip(t, s)
}

func TestFileBackendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")
	ctx := context.Background()

	s := New(path)
	if err := s.Save(ctx, "sess-1", sample()); err != nil {
		t.Fatal(err)
	}
	reopened := New(path)
	snap, ok, err := reopened.Load(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("reopen load: ok=%v err=%v", ok, err)
	}
	if snap.ListingID != "lst_1" {
		t.Fatalf("snap = %+v", snap)
	}
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
}

func TestSQLiteUpsertOverwrites(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	first := sample()
	_ = s.Save(ctx, "sess-1", first)
	second := sample()
	second.Step = wizard.StepReview
	if err := s.Save(ctx, "sess-1", second); err != nil {
		t.Fatal(err)
	}
	snap, _, _ := s.Load(ctx, "sess-1")
	if snap.Step != wizard.StepReview {
		t.Fatalf("step = %v", snap.Step)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "snapshots.json"))
	if err := s.Save(context.Background(), "  ", sample()); err == nil {
		t.Fatal("blank key accepted")
	}
}
