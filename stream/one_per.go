package stream

import (
	"context"
	"time"

	"github.com/kbukum/reactkit/resilience"
)

// OnePer limits consumption to at most one value per n*unit. The limit is
// applied before each pull, so the source is not asked for a value until the
// consumer is allowed to receive it.
func OnePer[T any](s *Stream[T], n int, unit time.Duration) *Stream[T] {
	interval := time.Duration(n) * unit
	if interval <= 0 {
		return s
	}
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &limitedIter[T]{
				source:  s.create(ctx),
				limiter: resilience.Every("one-per", interval, nil),
			}
		},
	}
}

// RateLimited paces pulls through limiter. Every pass shares the limiter.
func RateLimited[T any](s *Stream[T], limiter *resilience.RateLimiter) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &limitedIter[T]{source: s.create(ctx), limiter: limiter}
		},
	}
}

type limitedIter[T any] struct {
	source  Iterator[T]
	limiter *resilience.RateLimiter
}

func (it *limitedIter[T]) Next(ctx context.Context) (T, bool, error) {
	if err := it.limiter.Wait(ctx); err != nil {
		var zero T
		return zero, false, err
	}
	return it.source.Next(ctx)
}

func (it *limitedIter[T]) Close() error { return it.source.Close() }
