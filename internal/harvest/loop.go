package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"FeedHarvester/internal/dedup"
	"FeedHarvester/internal/domain"
	"FeedHarvester/internal/ports"
	"FeedHarvester/internal/rate"
)

const flushAttempts = 3

// Config tunes the loop's termination, retry, and persistence cadence.
type Config struct {
	// FeedURL identifies the feed this session owns.
	FeedURL string
	// EmptyThreshold is the number of consecutive empty advances that
	// confirm end of feed.
	EmptyThreshold int
	// MaxRetries bounds capture retries at one position before the session
	// pauses as blocking-suspected.
	MaxRetries int
	// RetryBase and RetryCap shape the capture backoff.
	RetryBase time.Duration
	RetryCap  time.Duration
	// CheckpointInterval is the time between interval-triggered checkpoints.
	CheckpointInterval time.Duration
	// FlushThreshold is the accumulated-record count that triggers a
	// progressive write.
	FlushThreshold int
	// ExploratoryWait separates empty advances, to rule out slow loading.
	ExploratoryWait time.Duration
	// BlockPause is how long a blocking-suspected pause lasts.
	BlockPause time.Duration
}

func (c Config) withDefaults() Config {
	if c.EmptyThreshold <= 0 {
		c.EmptyThreshold = 3
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 5 * time.Second
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 2 * time.Minute
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 300 * time.Second
	}
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = 50
	}
	if c.ExploratoryWait <= 0 {
		c.ExploratoryWait = 8 * time.Second
	}
	if c.BlockPause <= 0 {
		c.BlockPause = 5 * time.Minute
	}
	return c
}

// Deps wires the collaborators the loop drives.
type Deps struct {
	Fetch       ports.FetchPort
	Extractor   ports.RecordExtractor
	Builder     ports.RecordBuilder
	Governor    ports.RateGovernor
	Identities  ports.IdentitySource
	Checkpoints ports.CheckpointStore
	Output      ports.OutputSink
	Logger      *slog.Logger

	// Now and Sleep exist for tests; nil means real time.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Loop owns one harvest session: it drives the advance, extract, dedup,
// accumulate, persist cycle and the phase state machine. One advance is in
// flight at a time; flush and checkpoint I/O runs off-loop but completes
// before Run returns. A record handed to the sink stays visible to
// checkpoints until the sink confirms the write, so every checkpoint
// carries the full unflushed set.
type Loop struct {
	cfg  Config
	deps Deps

	state   domain.SessionState
	seen    *dedup.Set
	pending []domain.Record

	wg sync.WaitGroup

	mu        sync.Mutex
	inFlight  map[uint64]*flushBatch
	nextBatch uint64
}

// flushBatch is a write handed to the sink but not yet confirmed durable.
type flushBatch struct {
	records []domain.Record
	failed  bool
}

// New builds a loop.
func New(cfg Config, deps Deps) *Loop {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return &Loop{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		seen:     dedup.New(),
		inFlight: map[uint64]*flushBatch{},
	}
}

// Run executes the session until confirmed end of feed or context
// cancellation. Both terminate cleanly through a drain; the returned error
// is non-nil only when final persistence failed and progress may be lost.
func (l *Loop) Run(ctx context.Context) (domain.SessionState, error) {
	l.start(ctx)
	l.setPhase(domain.PhaseRunning)

	endOfFeed := false

	for {
		l.reclaimFailed()

		if ctx.Err() != nil {
			l.info("external stop requested")
			break
		}

		if err := l.deps.Governor.Acquire(ctx); err != nil {
			if errors.Is(err, rate.ErrExhausted) {
				if !l.pauseRateExhausted(ctx) {
					break
				}
				continue
			}
			// Context cancelled mid-wait.
			break
		}

		res, err := l.capture(ctx, l.state.Position)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !l.pauseBlocked(ctx, err) {
				break
			}
			continue
		}

		l.state.ActionCount++
		l.state.ConsecutiveErrors = 0

		fresh, sawContent := l.ingest(res.Fragment)
		if res.Position != "" {
			l.state.Position = res.Position
		}

		if !sawContent || res.EndOfFeed {
			l.state.ConsecutiveEmpty++
			l.info("empty advance",
				"consecutive", l.state.ConsecutiveEmpty,
				"threshold", l.cfg.EmptyThreshold,
				"end_of_feed_hint", res.EndOfFeed)
			if l.state.ConsecutiveEmpty >= l.cfg.EmptyThreshold {
				endOfFeed = true
				break
			}
			if err := l.deps.Sleep(ctx, l.cfg.ExploratoryWait); err != nil {
				break
			}
		} else {
			l.state.ConsecutiveEmpty = 0
			if fresh > 0 {
				l.info("harvested records", "new", fresh, "total", l.state.RecordCount)
			}
		}

		if len(l.pending) >= l.cfg.FlushThreshold {
			l.dispatchFlush()
		}
		if l.deps.Now().Sub(l.state.LastCheckpoint) >= l.cfg.CheckpointInterval {
			l.dispatchCheckpoint("interval")
		}
	}

	return l.drain(endOfFeed)
}

// start attempts the one-time checkpoint load and rehydrates on success.
func (l *Loop) start(ctx context.Context) {
	l.state = domain.SessionState{
		ID:        uuid.NewString(),
		FeedURL:   l.cfg.FeedURL,
		Phase:     domain.PhaseStarting,
		StartedAt: l.deps.Now(),
	}
	l.state.LastCheckpoint = l.state.StartedAt
	l.state.LastFlush = l.state.StartedAt

	if cp, ok := l.deps.Checkpoints.Load(); ok && sameFeed(cp.State.FeedURL, l.cfg.FeedURL) {
		l.state = cp.State
		l.state.Phase = domain.PhaseStarting
		l.state.ConsecutiveEmpty = 0
		l.state.ConsecutiveErrors = 0
		l.state.LastCheckpoint = l.deps.Now()
		l.seen = dedup.FromSnapshot(cp.SeenIdentities)
		l.pending = cp.PendingRecords
		l.info("resuming from checkpoint",
			"records", l.state.RecordCount,
			"identities", l.seen.Len(),
			"pending", len(l.pending),
			"position", l.state.Position)
	} else {
		l.info("no usable checkpoint, starting cold")
	}

	if l.deps.Fetch != nil && !l.deps.Fetch.RenderReady(ctx) {
		l.warn("feed not render-ready at startup, proceeding anyway")
	}
}

// sameFeed guards against resuming another feed's checkpoint. An empty
// configured URL accepts whatever the checkpoint recorded.
func sameFeed(saved, configured string) bool {
	return configured == "" || saved == configured
}

// capture performs one advance with capped exponential backoff. Exhausting
// the retry budget reports blocking-suspected.
func (l *Loop) capture(ctx context.Context, position string) (ports.AdvanceResult, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.RetryBase
	bo.MaxInterval = l.cfg.RetryCap
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(l.cfg.MaxRetries)), ctx)

	var res ports.AdvanceResult
	attempt := 0
	err := backoff.Retry(func() error {
		r, err := l.deps.Fetch.Advance(ctx, position)
		if err != nil {
			attempt++
			l.state.ConsecutiveErrors++
			l.state.Metrics.CaptureErrors++
			l.warn("content capture failed",
				"attempt", attempt,
				"position", position,
				"error", err)
			return err
		}
		res = r
		return nil
	}, policy)
	if err != nil && ctx.Err() == nil {
		return ports.AdvanceResult{}, fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	return res, err
}

// ingest extracts, finalizes, and deduplicates one fragment. It returns the
// number of fresh records and whether any candidate content was present at
// all (known duplicates count as content, not as emptiness).
func (l *Loop) ingest(fragment string) (fresh int, sawContent bool) {
	if fragment == "" {
		return 0, false
	}

	candidates, err := l.deps.Extractor.Extract(fragment)
	if err != nil {
		l.state.Metrics.ExtractionFailures++
		l.warn("fragment extraction failed", "error", err)
		return 0, false
	}
	if len(candidates) == 0 {
		return 0, false
	}

	extractedAt := l.deps.Now()
	for _, candidate := range candidates {
		rec, err := l.deps.Builder.Build(candidate, extractedAt)
		if err != nil {
			l.state.Metrics.RejectedCandidates++
			l.debug("candidate rejected", "error", err)
			continue
		}
		if l.seen.Seen(rec.Identity) {
			continue
		}
		l.seen.Record(rec.Identity)
		l.pending = append(l.pending, rec)
		l.state.RecordCount++
		fresh++
	}
	return fresh, true
}

// pauseRateExhausted checkpoints and sleeps until the trailing window frees
// budget. Returns false when the wait was cancelled.
func (l *Loop) pauseRateExhausted(ctx context.Context) bool {
	l.state.Metrics.RatePauses++
	l.dispatchCheckpoint("rate exhausted")
	l.setPhase(domain.PhasePausedRateExhaust)

	wait := l.deps.Governor.WaitHint()
	if wait <= 0 {
		wait = time.Minute
	}
	l.info("pausing until rate budget frees", "wait", wait)
	if err := l.deps.Sleep(ctx, wait); err != nil {
		return false
	}
	l.setPhase(domain.PhaseRunning)
	return true
}

// pauseBlocked rotates the identity, checkpoints, and waits out the pause.
// Returns false when the wait was cancelled.
func (l *Loop) pauseBlocked(ctx context.Context, cause error) bool {
	l.state.Metrics.BlockPauses++
	next := l.deps.Identities.Rotate()
	l.state.Metrics.IdentityRotations++
	l.dispatchCheckpoint("blocking suspected")
	l.setPhase(domain.PhasePausedBlocked)

	l.warn("pausing on suspected blocking",
		"cause", cause,
		"pause", l.cfg.BlockPause,
		"new_identity", next.UserAgent)
	if err := l.deps.Sleep(ctx, l.cfg.BlockPause); err != nil {
		return false
	}
	l.state.ConsecutiveErrors = 0
	l.setPhase(domain.PhaseRunning)
	return true
}

// drain performs the final flush and checkpoint, then terminates. A
// checkpoint failure here is the one fatal persistence failure: silent
// progress loss is worse than a dirty exit.
func (l *Loop) drain(endOfFeed bool) (domain.SessionState, error) {
	l.setPhase(domain.PhaseDraining)
	if endOfFeed {
		l.info("end of feed confirmed", "records", l.state.RecordCount)
	}

	l.wg.Wait()
	l.reclaimFailed()

	if len(l.pending) > 0 {
		err := backoff.Retry(func() error {
			_, err := l.deps.Output.Flush(l.pending)
			return err
		}, l.flushPolicy())
		if err != nil {
			// Keep them in the final checkpoint instead.
			l.deps.Logger.Error("final flush failed, records retained in checkpoint",
				"count", len(l.pending), "error", err)
		} else {
			l.state.LastFlush = l.deps.Now()
			l.pending = nil
		}
	}

	if err := l.saveCheckpoint("drain"); err != nil {
		return l.state, fmt.Errorf("final checkpoint: %w", err)
	}

	l.setPhase(domain.PhaseTerminated)
	return l.state, nil
}

func (l *Loop) flushPolicy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.RetryBase
	bo.MaxInterval = l.cfg.RetryCap
	return backoff.WithMaxRetries(bo, flushAttempts)
}

func (l *Loop) dispatchFlush() {
	batch := &flushBatch{records: l.pending}
	l.pending = nil
	l.state.LastFlush = l.deps.Now()

	l.mu.Lock()
	id := l.nextBatch
	l.nextBatch++
	l.inFlight[id] = batch
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		err := backoff.Retry(func() error {
			_, err := l.deps.Output.Flush(batch.records)
			return err
		}, l.flushPolicy())

		l.mu.Lock()
		if err != nil {
			// Stays checkpoint-visible until the loop reclaims it.
			batch.failed = true
		} else {
			delete(l.inFlight, id)
		}
		l.mu.Unlock()

		if err != nil {
			l.deps.Logger.Error("progressive write failed, records reclaimed",
				"count", len(batch.records), "error", err)
		}
	}()
}

// reclaimFailed folds failed-flush batches back into the accumulation
// buffer so the next flush carries them again.
func (l *Loop) reclaimFailed() {
	l.mu.Lock()
	for id, batch := range l.inFlight {
		if batch.failed {
			l.pending = append(l.pending, batch.records...)
			delete(l.inFlight, id)
		}
	}
	l.mu.Unlock()
}

// snapshot captures the loop state plus every record not yet confirmed
// written, whether it sits in the accumulation buffer or in an in-flight
// batch. Runs on the loop goroutine.
func (l *Loop) snapshot() domain.Checkpoint {
	now := l.deps.Now()
	l.state.LastCheckpoint = now

	unflushed := append([]domain.Record(nil), l.pending...)
	l.mu.Lock()
	for _, batch := range l.inFlight {
		unflushed = append(unflushed, batch.records...)
	}
	l.mu.Unlock()

	return domain.Checkpoint{
		SavedAt:        now,
		State:          l.state,
		SeenIdentities: l.seen.Snapshot(),
		PendingRecords: unflushed,
	}
}

func (l *Loop) saveCheckpoint(reason string) error {
	cp := l.snapshot()
	if err := l.deps.Checkpoints.Save(cp); err != nil {
		return err
	}
	l.debug("checkpoint taken", "reason", reason, "records", cp.State.RecordCount)
	return nil
}

// dispatchCheckpoint snapshots on the loop goroutine and persists off it.
func (l *Loop) dispatchCheckpoint(reason string) {
	cp := l.snapshot()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.deps.Checkpoints.Save(cp); err != nil {
			l.deps.Logger.Error("checkpoint save failed", "reason", reason, "error", err)
			return
		}
	}()
}

func (l *Loop) setPhase(phase domain.Phase) {
	if l.state.Phase == phase {
		return
	}
	l.info("phase transition", "from", string(l.state.Phase), "to", string(phase))
	l.state.Phase = phase
}

func (l *Loop) info(msg string, args ...any)  { l.deps.Logger.Info(msg, args...) }
func (l *Loop) warn(msg string, args ...any)  { l.deps.Logger.Warn(msg, args...) }
func (l *Loop) debug(msg string, args ...any) { l.deps.Logger.Debug(msg, args...) }
