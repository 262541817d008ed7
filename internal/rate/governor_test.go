package rate

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock drives the governor without real waiting: sleeps advance the
// clock instead of blocking.
type fakeClock struct {
	now time.Time
}

func newTestGovernor(cfg Config) (*Governor, *fakeClock) {
	g := New(cfg)
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	g.now = func() time.Time { return clock.now }
	g.sleep = func(ctx context.Context, d time.Duration) error {
		clock.now = clock.now.Add(d)
		return ctx.Err()
	}
	return g, clock
}

func TestAcquireRespectsWindowBudget(t *testing.T) {
	t.Parallel()

	g, clock := newTestGovernor(Config{
		HourlyBudget: 3,
		Window:       time.Hour,
		MinDelay:     time.Second,
		MaxDelay:     time.Second,
		WaitCeiling:  2 * time.Hour,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := g.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	// The fourth grant must wait for the first to age out of the window.
	before := clock.now
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("fourth acquire: %v", err)
	}
	waited := clock.now.Sub(before)
	if waited < 50*time.Minute {
		t.Fatalf("expected a near-hour wait for the window, waited %v", waited)
	}
}

func TestAcquireNeverExceedsTrailingWindow(t *testing.T) {
	t.Parallel()

	budget := 10
	g, clock := newTestGovernor(Config{
		HourlyBudget: budget,
		Window:       time.Hour,
		MinDelay:     time.Millisecond,
		MaxDelay:     time.Millisecond,
		WaitCeiling:  3 * time.Hour,
	})

	ctx := context.Background()
	var grants []time.Time
	for i := 0; i < 35; i++ {
		if err := g.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		grants = append(grants, clock.now)
	}

	for i := range grants {
		count := 0
		for j := range grants {
			diff := grants[i].Sub(grants[j])
			if diff >= 0 && diff < time.Hour {
				count++
			}
		}
		if count > budget {
			t.Fatalf("trailing window around grant %d held %d grants, budget %d", i, count, budget)
		}
	}
}

func TestAcquireSignalsExhaustion(t *testing.T) {
	t.Parallel()

	g, _ := newTestGovernor(Config{
		HourlyBudget: 2,
		Window:       time.Hour,
		MinDelay:     time.Millisecond,
		MaxDelay:     time.Millisecond,
		WaitCeiling:  time.Minute,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := g.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	err := g.Acquire(ctx)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	if hint := g.WaitHint(); hint <= 0 {
		t.Fatalf("expected a positive wait hint while exhausted, got %v", hint)
	}
}

func TestAcquireAppliesInterActionDelay(t *testing.T) {
	t.Parallel()

	g, clock := newTestGovernor(Config{
		HourlyBudget: 100,
		Window:       time.Hour,
		MinDelay:     1500 * time.Millisecond,
		MaxDelay:     2500 * time.Millisecond,
		WaitCeiling:  time.Hour,
	})

	ctx := context.Background()
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	for i := 0; i < 10; i++ {
		before := clock.now
		if err := g.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		gap := clock.now.Sub(before)
		if gap < 1500*time.Millisecond || gap > 2500*time.Millisecond {
			t.Fatalf("inter-action gap %v outside configured [1.5s, 2.5s]", gap)
		}
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	t.Parallel()

	g := New(Config{
		HourlyBudget: 100,
		Window:       time.Hour,
		MinDelay:     time.Hour,
		MaxDelay:     time.Hour,
		WaitCeiling:  2 * time.Hour,
	})

	ctx := context.Background()
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := g.Acquire(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
