package react

import (
	"time"
)

// Status is a consistent snapshot of one stage's counters. Every counter is
// monotonic across successive snapshots of the same stage.
type Status struct {
	tasks      int
	dispatched int
	completed  int
	errors     int
	failed     int
	elapsed    time.Duration
}

// Tasks returns the number of tasks that flow through the stage.
func (s Status) Tasks() int { return s.tasks }

// Dispatched returns how many tasks have reached the stage, whether they were
// submitted for execution or passed through with an upstream failure.
func (s Status) Dispatched() int { return s.dispatched }

// Completed returns how many tasks finished the stage with a value.
func (s Status) Completed() int { return s.completed }

// Errors returns how many failures were observed at the stage, counting
// failures that an OnFail handler recovered and failures carried over from
// earlier stages.
func (s Status) Errors() int { return s.errors }

// Failed returns how many tasks are terminal with an unrecovered failure.
func (s Status) Failed() int { return s.failed }

// AllCompleted returns how many tasks are terminal at the stage, with a
// value or with an unrecovered failure.
func (s Status) AllCompleted() int { return s.completed + s.failed }

// Done reports whether every task is terminal at the stage.
func (s Status) Done() bool { return s.completed+s.failed >= s.tasks }

// Elapsed returns the time since the run started.
func (s Status) Elapsed() time.Duration { return s.elapsed }

// ElapsedMillis returns Elapsed in milliseconds.
func (s Status) ElapsedMillis() int64 { return s.elapsed.Milliseconds() }

// tracker holds the counters of one stage. It is guarded by the owning
// Run's mutex, so a snapshot is taken atomically with the cell states.
type tracker struct {
	tasks      int
	dispatched int
	completed  int
	errors     int
	failed     int
	start      time.Time

	// changed is closed and replaced after every update.
	changed chan struct{}
}

func newTracker(tasks int, start time.Time) *tracker {
	return &tracker{tasks: tasks, start: start, changed: make(chan struct{})}
}

func (t *tracker) terminal() bool { return t.completed+t.failed >= t.tasks }

func (t *tracker) broadcast() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *tracker) snapshot() Status {
	return Status{
		tasks:      t.tasks,
		dispatched: t.dispatched,
		completed:  t.completed,
		errors:     t.errors,
		failed:     t.failed,
		elapsed:    time.Since(t.start),
	}
}
