package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"FeedHarvester/internal/domain"
)

// WriteSummary renders the session report to a timestamped text file in the
// output directory and returns its path.
func (w *Writer) WriteSummary(state domain.SessionState) (string, error) {
	w.mu.Lock()
	report := w.render(state)
	w.mu.Unlock()

	name := fmt.Sprintf("harvest_summary_%s.txt", time.Now().Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func (w *Writer) render(state domain.SessionState) string {
	var b strings.Builder
	elapsed := time.Since(state.StartedAt).Round(time.Second)

	fmt.Fprintf(&b, "=== HARVEST SUMMARY ===\n")
	fmt.Fprintf(&b, "Feed: %s\n", state.FeedURL)
	fmt.Fprintf(&b, "Session: %s\n", state.ID)
	fmt.Fprintf(&b, "Records written: %d\n", w.stats.total)
	fmt.Fprintf(&b, "Unique authors: %d\n", len(w.stats.authors))
	fmt.Fprintf(&b, "Unique publications: %d\n", len(w.stats.publications))
	fmt.Fprintf(&b, "Total claps: %d\n", w.stats.totalClaps)
	fmt.Fprintf(&b, "Total responses: %d\n", w.stats.totalResponses)
	fmt.Fprintf(&b, "Advance actions: %d\n", state.ActionCount)
	fmt.Fprintf(&b, "Capture errors: %d\n", state.Metrics.CaptureErrors)
	fmt.Fprintf(&b, "Identity rotations: %d\n", state.Metrics.IdentityRotations)
	fmt.Fprintf(&b, "Elapsed: %s\n", elapsed)

	if len(w.stats.authors) > 0 {
		fmt.Fprintf(&b, "\n=== TOP AUTHORS ===\n")
		for _, entry := range topCounts(w.stats.authors, topKeep) {
			fmt.Fprintf(&b, "%s: %d records\n", entry.name, entry.count)
		}
	}

	if len(w.stats.topRecords) > 0 {
		fmt.Fprintf(&b, "\n=== TOP RECORDS BY CLAPS ===\n")
		for _, rec := range w.stats.topRecords {
			fmt.Fprintf(&b, "%d claps - %s\n", rec.Claps, rec.Title)
		}
	}

	return b.String()
}

type countEntry struct {
	name  string
	count int
}

func topCounts(m map[string]int, n int) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for name, count := range m {
		entries = append(entries, countEntry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
