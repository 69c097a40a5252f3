package queue

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/stream"
)

// Policy decides what Offer does when the queue is full.
type Policy int

const (
	// Block waits for space. This is the default.
	Block Policy = iota
	// DropOldest evicts the head of the queue to make room for the new value.
	DropOldest
	// DropNewest discards the offered value.
	DropNewest
)

func (p Policy) String() string {
	switch p {
	case Block:
		return "block"
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	default:
		return "unknown"
	}
}

// Blocking reports whether Offer may wait for space.
func (p Policy) Blocking() bool { return p == Block }

// ParsePolicy accepts the names produced by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "drop_oldest", "drop-oldest":
		return DropOldest, nil
	case "drop_newest", "drop-newest":
		return DropNewest, nil
	default:
		return Block, errors.InvalidArgument("policy", "unknown overflow policy "+s)
	}
}

// Queue is a bounded FIFO with one producer side (Offer) and any number of
// consumers (Take). Queues are safe for concurrent use.
//
// Closing a queue rejects further offers. Values already buffered are still
// handed out by Take, which reports exhaustion once the buffer is empty.
type Queue[T any] struct {
	items  chan T
	closed chan struct{}
	policy Policy

	closeOnce sync.Once
	offered   atomic.Int64
	dropped   atomic.Int64
}

// New creates a queue holding at most capacity values.
func New[T any](capacity int, policy Policy) (*Queue[T], error) {
	if capacity < 1 {
		return nil, errors.InvalidArgument("capacity", "must be at least 1")
	}
	if policy < Block || policy > DropNewest {
		return nil, errors.InvalidArgument("policy", "unknown overflow policy")
	}
	return &Queue[T]{
		items:  make(chan T, capacity),
		closed: make(chan struct{}),
		policy: policy,
	}, nil
}

// Offer adds v according to the queue's policy. accepted is false when v was
// discarded by DropNewest. Offering to a closed queue returns ErrQueueClosed,
// and a Block offer that outlives ctx returns ctx.Err().
func (q *Queue[T]) Offer(ctx context.Context, v T) (accepted bool, err error) {
	select {
	case <-q.closed:
		return false, errors.QueueClosed()
	default:
	}

	switch q.policy {
	case DropNewest:
		select {
		case q.items <- v:
			q.offered.Add(1)
			return true, nil
		default:
			q.dropped.Add(1)
			return false, nil
		}

	case DropOldest:
		for {
			select {
			case q.items <- v:
				q.offered.Add(1)
				return true, nil
			default:
			}
			// Full: evict one and retry. A consumer may win the race for the
			// head, in which case nothing is dropped.
			select {
			case <-q.items:
				q.dropped.Add(1)
			default:
			}
		}

	default:
		select {
		case q.items <- v:
			q.offered.Add(1)
			return true, nil
		case <-q.closed:
			return false, errors.QueueClosed()
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Take removes the head of the queue, waiting until a value is available.
// ok is false once the queue is closed and drained.
func (q *Queue[T]) Take(ctx context.Context) (v T, ok bool, err error) {
	select {
	case v = <-q.items:
		return v, true, nil
	case <-q.closed:
		select {
		case v = <-q.items:
			return v, true, nil
		default:
			return v, false, nil
		}
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// Poll removes the head of the queue without waiting.
func (q *Queue[T]) Poll() (v T, ok bool) {
	select {
	case v = <-q.items:
		return v, true
	default:
		return v, false
	}
}

// Close stops the queue from accepting values. It is safe to call more than once.
func (q *Queue[T]) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

// Closed returns a channel that is closed when the queue is closed.
func (q *Queue[T]) Closed() <-chan struct{} { return q.closed }

// IsClosed reports whether Close has been called.
func (q *Queue[T]) IsClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered values.
func (q *Queue[T]) Len() int { return len(q.items) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.items) }

// Policy returns the overflow policy.
func (q *Queue[T]) Policy() Policy { return q.policy }

// Offered returns how many values were accepted.
func (q *Queue[T]) Offered() int64 { return q.offered.Load() }

// Dropped returns how many values were discarded by a drop policy.
func (q *Queue[T]) Dropped() int64 { return q.dropped.Load() }

// Stream returns a lazy view that takes from the queue on every pull and ends
// when the queue is closed and drained. All views share the one queue.
func (q *Queue[T]) Stream() *stream.Stream[T] {
	return stream.FromFunc(func(context.Context) stream.Iterator[T] {
		return stream.IteratorFunc[T](q.Take)
	})
}
