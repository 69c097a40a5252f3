package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/reactkit/errors"
)

// Trigger paces a single pull loop according to a Spec. The loop calls Wait
// before each pull and Done after it. A Trigger is not meant to be shared
// between loops.
//
// A Wait interrupted by ctx leaves the trigger unchanged, so the next Wait
// resumes the same cadence.
type Trigger struct {
	spec  Spec
	clock clock.Clock

	mu       sync.Mutex
	started  bool
	start    time.Time // first fixed-rate tick
	ticks    int64     // fixed-rate ticks fired after start
	lastDone time.Time
}

// NewTrigger returns a Trigger for spec. A nil clock uses wall-clock time.
func NewTrigger(spec Spec, clk clock.Clock) *Trigger {
	if clk == nil {
		clk = clock.New()
	}
	return &Trigger{spec: spec, clock: clk}
}

// Spec returns the schedule this trigger follows.
func (t *Trigger) Spec() Spec { return t.spec }

// Wait blocks until the next pull is due.
//
// Fixed delay and fixed rate fire their first tick immediately. A fixed-rate
// tick that is already due fires at once, and any further ticks missed during
// a slow pull are coalesced into that one. Cron waits for the next match.
func (t *Trigger) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	now := t.clock.Now()
	var due time.Time
	commit := func() {}

	switch t.spec.kind {
	case FixedDelay:
		if t.started {
			due = t.lastDone.Add(t.spec.interval)
		}
		commit = func() { t.started = true }

	case FixedRate:
		if !t.started {
			commit = func() {
				t.started = true
				t.start = t.clock.Now()
				t.ticks = 0
			}
			break
		}
		next := t.ticks + 1
		due = t.start.Add(time.Duration(next) * t.spec.interval)
		if !due.After(now) {
			// Coalesce: skip to the latest tick that is already due.
			next = int64(now.Sub(t.start) / t.spec.interval)
		}
		commit = func() { t.ticks = next }

	case Cron:
		due = t.spec.cron.Next(now)
		if due.IsZero() {
			t.mu.Unlock()
			return errors.InvalidSchedule("cron expression " + t.spec.expr + " has no further matches")
		}
	}
	t.mu.Unlock()

	if wait := due.Sub(t.clock.Now()); !due.IsZero() && wait > 0 {
		timer := t.clock.Timer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	t.mu.Lock()
	commit()
	t.mu.Unlock()
	return nil
}

// Done records that the pull started by the last Wait has completed.
func (t *Trigger) Done() {
	t.mu.Lock()
	t.lastDone = t.clock.Now()
	t.mu.Unlock()
}
