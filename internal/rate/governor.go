package rate

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"FeedHarvester/internal/ports"
)

// ErrExhausted reports that granting the next action would require waiting
// past the configured ceiling. The caller should checkpoint and pause
// rather than block.
var ErrExhausted = errors.New("rate budget exhausted")

// Config bounds the governor.
type Config struct {
	// HourlyBudget is the maximum number of grants over any trailing window.
	HourlyBudget int
	// Window is the trailing interval the budget applies to.
	Window time.Duration
	// MinDelay and MaxDelay bound the randomized inter-action delay.
	MinDelay time.Duration
	MaxDelay time.Duration
	// WaitCeiling is the longest Acquire will block before signaling
	// exhaustion instead.
	WaitCeiling time.Duration
}

// Governor grants permission for outbound actions. The budget is a sliding
// window over the trailing interval, not a fixed-interval bucket, so there
// is no burst at window boundaries. It never rejects, only delays, except
// when the required wait would exceed the ceiling.
//
// A governor belongs to one session and is driven by one goroutine.
type Governor struct {
	cfg    Config
	grants []time.Time
	last   time.Time
	rng    *rand.Rand

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var _ ports.RateGovernor = (*Governor)(nil)

// New builds a governor. Zero-valued fields get conservative defaults.
func New(cfg Config) *Governor {
	if cfg.HourlyBudget <= 0 {
		cfg.HourlyBudget = 400
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.WaitCeiling <= 0 {
		cfg.WaitCeiling = time.Hour
	}
	return &Governor{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Acquire blocks until both the inter-action delay has elapsed since the
// last grant and the trailing-window budget has capacity. It returns
// ErrExhausted instead of waiting past the ceiling, and the context error
// if the caller is cancelled mid-wait.
func (g *Governor) Acquire(ctx context.Context) error {
	now := g.now()

	wait := g.delayWait(now)
	if w := g.windowWait(now); w > wait {
		wait = w
	}

	if wait > g.cfg.WaitCeiling {
		return ErrExhausted
	}

	if wait > 0 {
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}

	granted := g.now()
	g.prune(granted)
	g.grants = append(g.grants, granted)
	g.last = granted
	return nil
}

// WaitHint reports how long until the trailing window frees a slot. Zero
// means the next Acquire would not wait on the budget.
func (g *Governor) WaitHint() time.Duration {
	now := g.now()
	return g.windowWait(now)
}

func (g *Governor) delayWait(now time.Time) time.Duration {
	if g.last.IsZero() {
		return 0
	}
	delay := g.cfg.MinDelay
	if span := g.cfg.MaxDelay - g.cfg.MinDelay; span > 0 {
		delay += time.Duration(g.rng.Int63n(int64(span)))
	}
	elapsed := now.Sub(g.last)
	if elapsed >= delay {
		return 0
	}
	return delay - elapsed
}

func (g *Governor) windowWait(now time.Time) time.Duration {
	g.prune(now)
	if len(g.grants) < g.cfg.HourlyBudget {
		return 0
	}
	// The oldest grant inside the window must age out first.
	oldest := g.grants[len(g.grants)-g.cfg.HourlyBudget]
	return oldest.Add(g.cfg.Window).Sub(now)
}

func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.cfg.Window)
	i := 0
	for i < len(g.grants) && !g.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.grants = append(g.grants[:0], g.grants[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
