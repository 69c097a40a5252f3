package stream

import (
	"context"
)

// Map transforms each value using fn.
func Map[I, O any](s *Stream[I], fn func(context.Context, I) (O, error)) *Stream[O] {
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: s.create(ctx), fn: fn}
		},
	}
}

// FlatMap transforms each value into an iterator and flattens the results.
func FlatMap[I, O any](s *Stream[I], fn func(context.Context, I) (Iterator[O], error)) *Stream[O] {
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &flatMapIter[I, O]{source: s.create(ctx), fn: fn}
		},
	}
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](s *Stream[T], fn func(T) bool) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &filterIter[T]{source: s.create(ctx), fn: fn}
		},
	}
}

// Peek calls fn as a side-effect for each value, then passes the value through unchanged.
func Peek[T any](s *Stream[T], fn func(context.Context, T) error) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &peekIter[T]{source: s.create(ctx), fn: fn}
		},
	}
}

// Limit yields at most n values. The source is not pulled past the nth value.
func Limit[T any](s *Stream[T], n int) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &limitIter[T]{source: s.create(ctx), remaining: n}
		},
	}
}

// LimitWhile yields values while fn returns true and stops at the first value
// for which it returns false. That value is consumed and discarded.
func LimitWhile[T any](s *Stream[T], fn func(T) bool) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &limitWhileIter[T]{source: s.create(ctx), fn: fn}
		},
	}
}

// Reduce accumulates all values into a single result.
// The stream yields exactly one value: the final accumulator.
func Reduce[T, R any](s *Stream[T], init R, fn func(R, T) R) *Stream[R] {
	return &Stream[R]{
		create: func(ctx context.Context) Iterator[R] {
			return &reduceIter[T, R]{source: s.create(ctx), acc: init, fn: fn}
		},
	}
}

// Concat joins multiple streams sequentially.
// All values from the first stream are yielded before the second, etc.
func Concat[T any](streams ...*Stream[T]) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			iters := make([]Iterator[T], len(streams))
			for i, s := range streams {
				iters[i] = s.create(ctx)
			}
			return &concatIter[T]{iters: iters}
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type flatMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) (Iterator[O], error)
	current Iterator[O]
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	for {
		if it.current != nil {
			val, ok, err := it.current.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if ok {
				return val, true, nil
			}
			_ = it.current.Close()
			it.current = nil
		}
		in, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		inner, err := it.fn(ctx, in)
		if err != nil {
			return zero, false, err
		}
		it.current = inner
	}
}

func (it *flatMapIter[I, O]) Close() error {
	if it.current != nil {
		_ = it.current.Close()
	}
	return it.source.Close()
}

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.fn(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type peekIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *peekIter[T]) Next(ctx context.Context) (T, bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *peekIter[T]) Close() error { return it.source.Close() }

type limitIter[T any] struct {
	source    Iterator[T]
	remaining int
}

func (it *limitIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.remaining <= 0 {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, false, err
	}
	it.remaining--
	return val, true, nil
}

func (it *limitIter[T]) Close() error { return it.source.Close() }

type limitWhileIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
	done   bool
}

func (it *limitWhileIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	if !it.fn(val) {
		it.done = true
		return zero, false, nil
	}
	return val, true, nil
}

func (it *limitWhileIter[T]) Close() error { return it.source.Close() }

type reduceIter[T, R any] struct {
	source Iterator[T]
	acc    R
	fn     func(R, T) R
	done   bool
}

func (it *reduceIter[T, R]) Next(ctx context.Context) (R, bool, error) {
	if it.done {
		var zero R
		return zero, false, nil
	}
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			var zero R
			return zero, false, err
		}
		if !ok {
			it.done = true
			return it.acc, true, nil
		}
		it.acc = it.fn(it.acc, val)
	}
}

func (it *reduceIter[T, R]) Close() error { return it.source.Close() }

type concatIter[T any] struct {
	iters []Iterator[T]
	index int
}

func (it *concatIter[T]) Next(ctx context.Context) (T, bool, error) {
	for it.index < len(it.iters) {
		val, ok, err := it.iters[it.index].Next(ctx)
		if err != nil {
			return val, false, err
		}
		if ok {
			return val, true, nil
		}
		it.index++
	}
	var zero T
	return zero, false, nil
}

func (it *concatIter[T]) Close() error {
	var firstErr error
	for _, iter := range it.iters {
		if err := iter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
