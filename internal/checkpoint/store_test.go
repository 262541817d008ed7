package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FeedHarvester/internal/domain"
)

func sampleCheckpoint() domain.Checkpoint {
	now := time.Date(2026, time.March, 1, 10, 30, 0, 0, time.UTC)
	return domain.Checkpoint{
		SavedAt: now,
		State: domain.SessionState{
			ID:          "session-1",
			FeedURL:     "https://medium.com/@someone/list/coding",
			Position:    "75",
			RecordCount: 2,
			ActionCount: 3,
			Phase:       domain.PhaseRunning,
			StartedAt:   now.Add(-time.Hour),
		},
		SeenIdentities: []string{
			"https://medium.com/p/one",
			"https://medium.com/p/two",
		},
		PendingRecords: []domain.Record{
			{Identity: "https://medium.com/p/two", Title: "Two", ExtractedAt: now},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	want := sampleCheckpoint()
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := store.Load()
	if !ok {
		t.Fatal("expected checkpoint to load")
	}
	if got.State.ID != want.State.ID || got.State.Position != want.State.Position {
		t.Fatalf("state mismatch: got %+v", got.State)
	}
	if len(got.SeenIdentities) != 2 || got.SeenIdentities[0] != want.SeenIdentities[0] {
		t.Fatalf("identity list mismatch: %v", got.SeenIdentities)
	}
	if len(got.PendingRecords) != 1 || got.PendingRecords[0].Identity != "https://medium.com/p/two" {
		t.Fatalf("pending records mismatch: %v", got.PendingRecords)
	}
}

func TestLoadAbsent(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.Load(); ok {
		t.Fatal("expected absence for missing checkpoint")
	}
}

func TestLoadCorruptTreatedAsAbsent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, ok := store.Load(); ok {
		t.Fatal("corrupt checkpoint must read as absent")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(sampleCheckpoint()); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "checkpoint.json")); err != nil {
		t.Fatalf("checkpoint file missing: %v", err)
	}
}

func TestSaveDropsStaleSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	newer := sampleCheckpoint()
	newer.State.RecordCount = 20

	older := sampleCheckpoint()
	older.SavedAt = newer.SavedAt.Add(-time.Minute)
	older.State.RecordCount = 5
	older.SeenIdentities = older.SeenIdentities[:1]

	// The newer snapshot lands first; the delayed older one must not
	// roll the file back to a smaller seen-set.
	if err := store.Save(newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if err := store.Save(older); err != nil {
		t.Fatalf("save older: %v", err)
	}

	got, ok := store.Load()
	if !ok {
		t.Fatal("expected checkpoint to load")
	}
	if got.State.RecordCount != 20 {
		t.Fatalf("stale snapshot overwrote newer one: record count %d", got.State.RecordCount)
	}
	if len(got.SeenIdentities) != 2 {
		t.Fatalf("seen-set shrank to %d identities", len(got.SeenIdentities))
	}
}

func TestSaveThenReloadAfterRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	want := sampleCheckpoint()
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A fresh store over the same directory models a process restart.
	restarted, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store after restart: %v", err)
	}
	got, ok := restarted.Load()
	if !ok {
		t.Fatal("expected checkpoint to survive restart")
	}
	if got.State.RecordCount != want.State.RecordCount {
		t.Fatalf("record count %d after restart, want %d", got.State.RecordCount, want.State.RecordCount)
	}
}
