package domain

import "time"

// Phase enumerates the harvest loop's state machine.
type Phase string

const (
	PhaseStarting          Phase = "starting"
	PhaseRunning           Phase = "running"
	PhasePausedRateExhaust Phase = "paused_rate_exhausted"
	PhasePausedBlocked     Phase = "paused_blocked"
	PhaseDraining          Phase = "draining"
	PhaseTerminated        Phase = "terminated"
)

// SessionMetrics counts notable events over the life of a session.
type SessionMetrics struct {
	CaptureErrors      int `json:"capture_errors"`
	ExtractionFailures int `json:"extraction_failures"`
	RejectedCandidates int `json:"rejected_candidates"`
	IdentityRotations  int `json:"identity_rotations"`
	RatePauses         int `json:"rate_pauses"`
	BlockPauses        int `json:"block_pauses"`
}

// SessionState is the single mutable object owned by the harvest loop.
// The advance position is an opaque token only the fetch port interprets.
type SessionState struct {
	ID                string         `json:"id"`
	FeedURL           string         `json:"feed_url"`
	Position          string         `json:"position"`
	RecordCount       int            `json:"record_count"`
	ActionCount       int            `json:"action_count"`
	ConsecutiveEmpty  int            `json:"consecutive_empty"`
	ConsecutiveErrors int            `json:"consecutive_errors"`
	Phase             Phase          `json:"phase"`
	StartedAt         time.Time      `json:"started_at"`
	LastCheckpoint    time.Time      `json:"last_checkpoint"`
	LastFlush         time.Time      `json:"last_flush"`
	Metrics           SessionMetrics `json:"metrics"`
}

// Checkpoint is an immutable point-in-time snapshot of a session: the state,
// the full seen-identity set, and the accumulated records not yet flushed.
// It is consumed exactly once, at startup.
type Checkpoint struct {
	SavedAt        time.Time    `json:"saved_at"`
	State          SessionState `json:"state"`
	SeenIdentities []string     `json:"seen_identities"`
	PendingRecords []Record     `json:"pending_records"`
}
