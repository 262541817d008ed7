package dedup

import (
	"reflect"
	"testing"
)

func TestSeenAndRecord(t *testing.T) {
	t.Parallel()

	s := New()
	if s.Seen("https://medium.com/p/abc") {
		t.Fatal("empty set reported identity as seen")
	}

	s.Record("https://medium.com/p/abc")
	if !s.Seen("https://medium.com/p/abc") {
		t.Fatal("recorded identity not reported as seen")
	}

	// Idempotent.
	s.Record("https://medium.com/p/abc")
	if s.Len() != 1 {
		t.Fatalf("expected 1 identity, got %d", s.Len())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	s := New()
	ids := []string{
		"https://medium.com/p/one",
		"https://medium.com/p/two",
		"https://medium.com/p/three",
	}
	for _, id := range ids {
		s.Record(id)
	}

	snap := s.Snapshot()
	restored := FromSnapshot(snap)

	if restored.Len() != s.Len() {
		t.Fatalf("rehydrated %d identities, want %d", restored.Len(), s.Len())
	}
	for _, id := range ids {
		if !restored.Seen(id) {
			t.Fatalf("identity %s lost in round trip", id)
		}
	}

	// Snapshot is deterministic.
	if !reflect.DeepEqual(snap, restored.Snapshot()) {
		t.Fatal("snapshot not stable across round trip")
	}
}
