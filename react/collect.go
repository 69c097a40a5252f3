package react

import (
	"context"
	"strings"

	"github.com/kbukum/reactkit/errors"
)

// CollectOption configures a collection.
type CollectOption func(*collectOptions)

type collectOptions struct {
	breakout func(Status) bool
}

// Breakout returns early as soon as pred holds for a status snapshot. The
// predicate is evaluated before any task completes, so it must accept an
// all-zero Status. Tasks still running when it fires are not cancelled;
// their results are simply not part of the collection.
func Breakout(pred func(Status) bool) CollectOption {
	return func(o *collectOptions) { o.breakout = pred }
}

// Collect blocks until every task is terminal at this stage, the breakout
// predicate holds, or ctx is done, and returns the values of the tasks that
// succeeded, in dispatch order. Task failures never make Collect fail; if
// ctx ends first the values gathered so far are returned with ctx.Err().
func (s *Stage[T]) Collect(ctx context.Context, opts ...CollectOption) ([]T, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var o collectOptions
	for _, opt := range opts {
		opt(&o)
	}

	_, waitErr := s.run.await(ctx, s.index, func(st Status) bool {
		return st.Done() || (o.breakout != nil && o.breakout(st))
	})
	values := s.values()
	if waitErr != nil {
		return values, waitErr
	}
	if err := s.run.fatal(); err != nil {
		return values, errors.Wrap(err)
	}
	return values, nil
}

// Block is Collect with a breakout predicate.
func (s *Stage[T]) Block(ctx context.Context, breakout func(Status) bool) ([]T, error) {
	return s.Collect(ctx, Breakout(breakout))
}

// First returns the value of the first task to succeed at this stage. It
// fails with errors.ErrNoResults when every task failed.
func (s *Stage[T]) First(ctx context.Context) (T, error) {
	return s.pick(ctx, func(st Status) bool { return st.Completed() > 0 || st.Done() }, func(d *descriptor) int { return d.first })
}

// Last waits for every task and returns the value of the last one to
// succeed. It fails with errors.ErrNoResults when every task failed.
func (s *Stage[T]) Last(ctx context.Context) (T, error) {
	return s.pick(ctx, Status.Done, func(d *descriptor) int { return d.last })
}

func (s *Stage[T]) pick(ctx context.Context, done func(Status) bool, which func(*descriptor) int) (T, error) {
	var zero T
	if err := s.check(); err != nil {
		return zero, err
	}
	if _, err := s.run.await(ctx, s.index, done); err != nil {
		return zero, err
	}
	if err := s.run.fatal(); err != nil {
		return zero, errors.Wrap(err)
	}

	s.run.mu.Lock()
	d := s.run.stages[s.index]
	task := which(d)
	var v any
	if task >= 0 {
		v = d.cells[task].value
	}
	s.run.mu.Unlock()

	if task < 0 {
		return zero, errors.NoResults(s.index)
	}
	out, _ := v.(T)
	return out, nil
}

// values returns the successful values that are terminal right now.
func (s *Stage[T]) values() []T {
	s.run.mu.Lock()
	defer s.run.mu.Unlock()
	d := s.run.stages[s.index]
	out := make([]T, 0, len(d.cells))
	for _, c := range d.cells {
		if c.state == cellDone && c.err == nil {
			v, _ := c.value.(T)
			out = append(out, v)
		}
	}
	return out
}

// Collector reduces the successful values of a stage into a result.
type Collector[T, R any] func(values []T) R

// CollectWith is Collect followed by collector.
func CollectWith[T, R any](ctx context.Context, s *Stage[T], collector Collector[T, R], opts ...CollectOption) (R, error) {
	var zero R
	if collector == nil {
		return zero, errors.InvalidArgument("collector", "must not be nil")
	}
	values, err := s.Collect(ctx, opts...)
	if err != nil && values == nil {
		return zero, err
	}
	return collector(values), err
}

// ToSlice keeps values in dispatch order.
func ToSlice[T any]() Collector[T, []T] {
	return func(values []T) []T { return values }
}

// ToSet collects distinct values.
func ToSet[T comparable]() Collector[T, map[T]struct{}] {
	return func(values []T) map[T]struct{} {
		set := make(map[T]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		return set
	}
}

// Reducing folds values into init with fn.
func Reducing[T, R any](init R, fn func(R, T) R) Collector[T, R] {
	return func(values []T) R {
		acc := init
		for _, v := range values {
			acc = fn(acc, v)
		}
		return acc
	}
}

// Counting counts values.
func Counting[T any]() Collector[T, int] {
	return func(values []T) int { return len(values) }
}

// Joining concatenates strings with sep.
func Joining(sep string) Collector[string, string] {
	return func(values []string) string { return strings.Join(values, sep) }
}
