package dedup

import "sort"

// Set tracks the identities seen over the whole session, including across
// resumptions. Identities are normalized once, at extraction time; the set
// never re-derives them, so a snapshot round-trip is lossless.
type Set struct {
	seen map[string]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{seen: map[string]struct{}{}}
}

// FromSnapshot rehydrates a set from a checkpoint's identity list.
func FromSnapshot(identities []string) *Set {
	s := &Set{seen: make(map[string]struct{}, len(identities))}
	for _, id := range identities {
		s.seen[id] = struct{}{}
	}
	return s
}

// Seen reports whether the identity has been recorded.
func (s *Set) Seen(identity string) bool {
	_, ok := s.seen[identity]
	return ok
}

// Record marks the identity seen. Idempotent.
func (s *Set) Record(identity string) {
	s.seen[identity] = struct{}{}
}

// Len returns the number of distinct identities.
func (s *Set) Len() int {
	return len(s.seen)
}

// Snapshot serializes the set for checkpointing. Sorted for stable output.
func (s *Set) Snapshot() []string {
	out := make([]string, 0, len(s.seen))
	for id := range s.seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
