package react

import (
	"context"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/resilience"
)

// Stage is a typed handle on one stage of a Run. Handles are cheap values;
// appending a stage never changes the receiver.
type Stage[T any] struct {
	run   *Run
	index int
	err   error
}

func broken[T any](err error) *Stage[T] { return &Stage[T]{index: -1, err: err} }

// Dispatch creates one task per supplier and submits every supplier to the
// run's executor at once.
func Dispatch[T any](r *Run, suppliers ...func(context.Context) (T, error)) *Stage[T] {
	if r == nil {
		return broken[T](errors.InvalidArgument("run", "must not be nil"))
	}
	if r.err != nil {
		return broken[T](r.err)
	}
	d := &descriptor{
		parent: -1,
		kind:   kindSupply,
		supply: make([]func(context.Context) (any, error), len(suppliers)),
		cells:  make([]cell, len(suppliers)),
	}
	for i, s := range suppliers {
		if s == nil {
			return broken[T](errors.InvalidArgument("supplier", "must not be nil"))
		}
		d.supply[i] = func(ctx context.Context) (any, error) { return s(ctx) }
	}
	r.rc.Metrics.RecordDispatched(r.ctx, r.name, len(suppliers))
	return &Stage[T]{run: r, index: r.addStage(d)}
}

// Of dispatches one task per value.
func Of[T any](r *Run, values ...T) *Stage[T] {
	suppliers := make([]func(context.Context) (T, error), len(values))
	for i, v := range values {
		suppliers[i] = func(context.Context) (T, error) { return v, nil }
	}
	return Dispatch(r, suppliers...)
}

// Then appends a stage that applies fn to every task's value. A task's cell
// runs as soon as that task finishes the previous stage; tasks do not wait
// for each other. Tasks that failed earlier skip fn and keep their failure.
func Then[T, U any](s *Stage[T], fn func(context.Context, T) (U, error)) *Stage[U] {
	if err := s.check(); err != nil {
		return broken[U](err)
	}
	if fn == nil {
		return broken[U](errors.InvalidArgument("fn", "must not be nil"))
	}
	d := &descriptor{
		parent: s.index,
		kind:   kindMap,
		cells:  make([]cell, s.run.tasks(s.index)),
		apply: func(ctx context.Context, in any) (any, error) {
			v, _ := in.(T)
			return fn(ctx, v)
		},
	}
	return &Stage[U]{run: s.run, index: s.run.addStage(d)}
}

// ThenRetry is Then with fn retried according to cfg.
func ThenRetry[T, U any](s *Stage[T], fn func(context.Context, T) (U, error), cfg resilience.RetryConfig) *Stage[U] {
	if fn == nil {
		return Then[T, U](s, nil)
	}
	return Then(s, func(ctx context.Context, v T) (U, error) {
		return resilience.Retry(ctx, cfg, func() (U, error) { return fn(ctx, v) })
	})
}

// AllOf appends a single-task stage that runs fn once over the values of
// every successful task, gathered by collector, after all tasks are terminal.
func AllOf[T, C, U any](s *Stage[T], collector Collector[T, C], fn func(context.Context, C) (U, error)) *Stage[U] {
	if err := s.check(); err != nil {
		return broken[U](err)
	}
	if collector == nil || fn == nil {
		return broken[U](errors.InvalidArgument("allOf", "collector and fn must not be nil"))
	}
	d := &descriptor{
		parent: s.index,
		kind:   kindAllOf,
		cells:  make([]cell, 1),
		gather: func(ctx context.Context, in []any) (any, error) {
			values := make([]T, len(in))
			for i, v := range in {
				values[i], _ = v.(T)
			}
			return fn(ctx, collector(values))
		},
	}
	return &Stage[U]{run: s.run, index: s.run.addStage(d)}
}

// OnFail attaches a recovery to this stage. When a task fails at this stage,
// handler supplies a substitute value and the task continues; the failure is
// still counted in Errors. Failures from earlier stages pass through
// untouched, as do tasks that succeeded. Failures of this stage that
// happened before OnFail was called are recovered as well.
func (s *Stage[T]) OnFail(handler func(context.Context, *StageError) (T, error)) *Stage[T] {
	if err := s.check(); err != nil {
		return broken[T](err)
	}
	if handler == nil {
		return broken[T](errors.InvalidArgument("handler", "must not be nil"))
	}
	d := &descriptor{
		parent: s.index,
		kind:   kindRecover,
		cells:  make([]cell, s.run.tasks(s.index)),
		recover: func(ctx context.Context, se *StageError) (any, error) {
			return handler(ctx, se)
		},
	}
	return &Stage[T]{run: s.run, index: s.run.addStage(d)}
}

// Capture sets the run-wide capture handler. It is called once for every
// failure that no OnFail recovers, as soon as the failure reaches a later
// stage or its own stage is collected, and before a collection observes it
// in a Status. Failures reported before Capture was called are delivered
// from Capture itself.
func (s *Stage[T]) Capture(handler func(*StageError)) *Stage[T] {
	if s.check() != nil || handler == nil {
		return s
	}
	s.run.setCapture(handler)
	return s
}

// Status returns a snapshot of this stage's counters.
func (s *Stage[T]) Status() Status {
	if s.check() != nil {
		return Status{}
	}
	return s.run.status(s.index)
}

// Index returns the stage's position in the run.
func (s *Stage[T]) Index() int { return s.index }

// Run returns the run the stage belongs to.
func (s *Stage[T]) Run() *Run { return s.run }

// Err returns the construction error of the stage, if any.
func (s *Stage[T]) Err() error { return s.check() }

// Failures returns the unrecovered failures of tasks that are terminal at
// this stage, in task order.
func (s *Stage[T]) Failures() []*StageError {
	if s.check() != nil {
		return nil
	}
	s.run.mu.Lock()
	defer s.run.mu.Unlock()
	var out []*StageError
	for _, c := range s.run.stages[s.index].cells {
		if c.state == cellDone && c.err != nil {
			out = append(out, c.err)
		}
	}
	return out
}

func (s *Stage[T]) check() error {
	if s == nil {
		return errors.InvalidArgument("stage", "must not be nil")
	}
	if s.err != nil {
		return s.err
	}
	if s.run == nil {
		return errors.InvalidArgument("stage", "not bound to a run")
	}
	return nil
}
