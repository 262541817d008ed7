package ports

import (
	"context"
	"time"

	"FeedHarvester/internal/domain"
)

// AdvanceResult is what one advance action revealed: the new opaque
// position, the raw rendered fragment, and an optional end-of-feed hint.
type AdvanceResult struct {
	Position  string
	Fragment  string
	EndOfFeed bool
}

// FetchPort loads feed content. Implemented by a browser-automation or
// HTTP-paged adapter; timeouts and missing elements surface uniformly as
// retryable errors.
type FetchPort interface {
	Advance(ctx context.Context, position string) (AdvanceResult, error)
	RenderReady(ctx context.Context) bool
}

// RecordExtractor turns one raw fragment into zero or more candidates.
// Failures on individual fragments are logged and skipped, never fatal.
type RecordExtractor interface {
	Extract(fragment string) ([]domain.RawCandidate, error)
}

// RecordBuilder finalizes a candidate into a record, resolving its identity
// exactly once. A candidate whose identity cannot resolve is rejected.
type RecordBuilder interface {
	Build(candidate domain.RawCandidate, extractedAt time.Time) (domain.Record, error)
}

// RateGovernor gates every outbound action. Acquire blocks until the hourly
// budget and the randomized inter-action delay allow the next action, or
// reports exhaustion instead of waiting past its ceiling.
type RateGovernor interface {
	Acquire(ctx context.Context) error
	WaitHint() time.Duration
}

// IdentitySource supplies the request identity for the session.
type IdentitySource interface {
	Current() domain.Identity
	Rotate() domain.Identity
}

// CheckpointStore persists session snapshots atomically. Load reports
// absence (including a corrupt snapshot) rather than failing.
type CheckpointStore interface {
	Save(cp domain.Checkpoint) error
	Load() (domain.Checkpoint, bool)
}

// OutputSink appends finalized records to the durable output. Flushing zero
// records is a no-op.
type OutputSink interface {
	Flush(records []domain.Record) (int, error)
}
