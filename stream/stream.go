package stream

import (
	"context"
)

// Iterator provides pull-based sequential access to a sequence of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Stream is a lazy, pull-based sequence. No work happens until values are
// pulled through Iter, Collect, ForEach or First. Each call to Iter starts a
// new pass over the source, except for streams built with From, which share
// the one iterator they wrap.
type Stream[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// --- Constructors ---

// From creates a stream over an existing Iterator.
func From[T any](iter Iterator[T]) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return iter
		},
	}
}

// FromSlice creates a stream over a slice of values.
func FromSlice[T any](items []T) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// Of creates a stream over the given values.
func Of[T any](items ...T) *Stream[T] {
	return FromSlice(items)
}

// FromFunc creates a stream from a factory that produces an Iterator.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Stream[T] {
	return &Stream[T]{create: fn}
}

// Generate creates an unbounded stream that calls fn for every pull.
// An error from fn ends the stream with that error.
func Generate[T any](fn func(ctx context.Context) (T, error)) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return IteratorFunc[T](func(ctx context.Context) (T, bool, error) {
				v, err := fn(ctx)
				if err != nil {
					var zero T
					return zero, false, err
				}
				return v, true, nil
			})
		},
	}
}

// Iterate creates an unbounded stream seed, fn(seed), fn(fn(seed)), ...
func Iterate[T any](seed T, fn func(T) T) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			next, started := seed, false
			return IteratorFunc[T](func(context.Context) (T, bool, error) {
				if started {
					next = fn(next)
				}
				started = true
				return next, true, nil
			})
		},
	}
}

// Range creates a stream of the integers in [start, end).
func Range(start, end int) *Stream[int] {
	return &Stream[int]{
		create: func(_ context.Context) Iterator[int] {
			n := start
			return IteratorFunc[int](func(context.Context) (int, bool, error) {
				if n >= end {
					return 0, false, nil
				}
				n++
				return n - 1, true, nil
			})
		},
	}
}

// IteratorFunc adapts a plain function to the Iterator interface. Close is a no-op.
type IteratorFunc[T any] func(ctx context.Context) (T, bool, error)

// Next calls f.
func (f IteratorFunc[T]) Next(ctx context.Context) (T, bool, error) { return f(ctx) }

// Close does nothing.
func (f IteratorFunc[T]) Close() error { return nil }

// --- Terminals ---

// Collect pulls every value and returns them as a slice.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	iter := s.create(ctx)
	defer iter.Close()
	var result []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

// ForEach pulls every value and calls fn for each. An error from fn stops the pass.
func ForEach[T any](ctx context.Context, s *Stream[T], fn func(context.Context, T) error) error {
	iter := s.create(ctx)
	defer iter.Close()
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(ctx, val); err != nil {
			return err
		}
	}
}

// First pulls a single value. ok is false when the stream is empty.
func First[T any](ctx context.Context, s *Stream[T]) (T, bool, error) {
	iter := s.create(ctx)
	defer iter.Close()
	return iter.Next(ctx)
}

// Iter returns the raw Iterator for this stream. The caller must Close() it.
func (s *Stream[T]) Iter(ctx context.Context) Iterator[T] {
	return s.create(ctx)
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }
