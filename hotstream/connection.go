package hotstream

import (
	"time"

	"github.com/kbukum/reactkit/queue"
	"github.com/kbukum/reactkit/resilience"
	"github.com/kbukum/reactkit/stream"
)

// Connection is one subscriber of a hot stream: a bounded queue the publish
// loop offers to and the consumer takes from.
type Connection[T any] struct {
	id     string
	stream *HotStream[T]
	q      *queue.Queue[T]
}

// ID returns the subscriber id.
func (c *Connection[T]) ID() string { return c.id }

// Queue returns the subscriber queue.
func (c *Connection[T]) Queue() *queue.Queue[T] { return c.q }

// Stream returns a lazy view over the subscriber queue. It ends once the
// hot stream stops and the queue is drained.
func (c *Connection[T]) Stream() *stream.Stream[T] { return c.q.Stream() }

// OnePer returns a view that takes at most one element per n*unit,
// independent of how fast the hot stream publishes. With a blocking queue
// the publisher is held back once the queue fills up; with a drop policy
// the surplus is discarded.
func (c *Connection[T]) OnePer(n int, unit time.Duration) *stream.Stream[T] {
	interval := time.Duration(n) * unit
	if interval <= 0 {
		return c.Stream()
	}
	limiter := resilience.Every("one-per:"+c.id, interval, c.stream.clock)
	return stream.RateLimited(c.Stream(), limiter)
}

// Disconnect detaches the subscriber and closes its queue. Elements still
// buffered remain readable.
func (c *Connection[T]) Disconnect() {
	c.stream.detach(c)
	_ = c.q.Close()
}
