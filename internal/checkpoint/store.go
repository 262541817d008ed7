package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"FeedHarvester/internal/domain"
	"FeedHarvester/internal/ports"
)

const saveAttempts = 3

// Store persists session checkpoints as a single JSON file, replaced
// atomically via write-to-temp plus rename so a half-written checkpoint is
// never visible. Saves may arrive from concurrent goroutines; they are
// serialized, and a snapshot older than the last persisted one is never
// allowed to roll the file back.
type Store struct {
	mu        sync.Mutex
	path      string
	logger    *slog.Logger
	lastSaved time.Time
}

var _ ports.CheckpointStore = (*Store)(nil)

// NewStore places the checkpoint file inside dir.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, "checkpoint.json"), logger: logger}, nil
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the checkpoint durably, retrying transient I/O failures with
// exponential backoff. A snapshot taken before the last persisted one is
// dropped rather than written: resuming from it would shrink the seen-set
// and re-emit records into the append-only output.
func (s *Store) Save(cp domain.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cp.SavedAt.Before(s.lastSaved) {
		if s.logger != nil {
			s.logger.Debug("dropping stale checkpoint",
				"snapshot", cp.SavedAt, "persisted", s.lastSaved)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), saveAttempts)
	err = backoff.Retry(func() error {
		return s.writeAtomic(data)
	}, policy)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	s.lastSaved = cp.SavedAt

	if s.logger != nil {
		s.logger.Debug("checkpoint saved",
			"records", cp.State.RecordCount,
			"identities", len(cp.SeenIdentities),
			"pending", len(cp.PendingRecords))
	}
	return nil
}

func (s *Store) writeAtomic(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint, reporting absence for a missing file. A
// corrupt or unreadable checkpoint is also treated as absent: losing a
// resume point costs a re-harvest, failing the start costs the run.
func (s *Store) Load() (domain.Checkpoint, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) && s.logger != nil {
			s.logger.Warn("cannot read checkpoint, starting cold", "path", s.path, "error", err)
		}
		return domain.Checkpoint{}, false
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		if s.logger != nil {
			s.logger.Warn("corrupt checkpoint, starting cold", "path", s.path, "error", err)
		}
		return domain.Checkpoint{}, false
	}
	if cp.State.ID == "" || cp.SavedAt.IsZero() {
		if s.logger != nil {
			s.logger.Warn("incomplete checkpoint, starting cold", "path", s.path)
		}
		return domain.Checkpoint{}, false
	}

	return cp, true
}
