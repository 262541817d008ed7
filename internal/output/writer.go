package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"FeedHarvester/internal/domain"
	"FeedHarvester/internal/ports"
)

var csvColumns = []string{
	"title", "snippet", "author", "publication", "published_at",
	"claps", "responses", "url", "extracted_at",
}

// Writer appends finalized records to a JSONL file and a CSV file inside
// the output directory. It never rewrites prior output, so an interrupted
// run always leaves a valid prefix of the dataset. Flushes may arrive from
// a background goroutine, hence the mutex.
type Writer struct {
	mu       sync.Mutex
	dir      string
	jsonPath string
	csvPath  string
	logger   *slog.Logger
	stats    stats
}

var _ ports.OutputSink = (*Writer)(nil)

// NewWriter creates the output directory if needed.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{
		dir:      dir,
		jsonPath: filepath.Join(dir, "feed_records.jsonl"),
		csvPath:  filepath.Join(dir, "feed_records.csv"),
		logger:   logger,
		stats:    newStats(),
	}, nil
}

// Flush appends the records to both output files and returns the count
// written. Safe to call with zero records.
func (w *Writer) Flush(records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.appendJSONL(records); err != nil {
		return 0, err
	}
	if err := w.appendCSV(records); err != nil {
		return 0, err
	}
	w.stats.observe(records)

	if w.logger != nil {
		w.logger.Info("flushed records", "count", len(records), "total", w.stats.total)
	}
	return len(records), nil
}

func (w *Writer) appendJSONL(records []domain.Record) error {
	f, err := os.OpenFile(w.jsonPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.jsonPath, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("append record %s: %w", rec.Identity, err)
		}
	}
	return nil
}

func (w *Writer) appendCSV(records []domain.Record) error {
	info, statErr := os.Stat(w.csvPath)
	needHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(w.csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.csvPath, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needHeader {
		if err := cw.Write(csvColumns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for _, rec := range records {
		published := ""
		if rec.PublishedAt != nil {
			published = rec.PublishedAt.Format(time.RFC3339)
		}
		row := []string{
			rec.Title,
			rec.Snippet,
			rec.Author,
			rec.Publication,
			published,
			strconv.Itoa(rec.Claps),
			strconv.Itoa(rec.Responses),
			rec.Identity,
			rec.ExtractedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", rec.Identity, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// stats accumulates summary figures incrementally so full records can be
// dropped from memory after flushing.
type stats struct {
	total          int
	totalClaps     int
	totalResponses int
	authors        map[string]int
	publications   map[string]int
	topRecords     []domain.Record
}

func newStats() stats {
	return stats{
		authors:      map[string]int{},
		publications: map[string]int{},
	}
}

const topKeep = 10

func (s *stats) observe(records []domain.Record) {
	for _, rec := range records {
		s.total++
		s.totalClaps += rec.Claps
		s.totalResponses += rec.Responses
		if rec.Author != "" {
			s.authors[rec.Author]++
		}
		if rec.Publication != "" {
			s.publications[rec.Publication]++
		}
		s.topRecords = append(s.topRecords, rec)
	}
	sort.Slice(s.topRecords, func(i, j int) bool {
		return s.topRecords[i].Claps > s.topRecords[j].Claps
	})
	if len(s.topRecords) > topKeep {
		s.topRecords = s.topRecords[:topKeep]
	}
}
