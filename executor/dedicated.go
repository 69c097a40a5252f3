package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/logger"
)

// Dedicated runs every task on its own goroutine. It suits long-lived loops
// such as a hot stream publisher that would otherwise pin a pool worker.
type Dedicated struct {
	name string
	log  *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	active    atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// NewDedicated returns a goroutine-per-task executor.
func NewDedicated(name string) *Dedicated {
	return &Dedicated{name: name, log: logger.Get(logger.ComponentExecutor)}
}

// Submit starts task on a new goroutine.
func (d *Dedicated) Submit(task func()) error {
	if task == nil {
		return errors.InvalidArgument("task", "must not be nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.ExecutorClosed(d.name)
	}
	d.wg.Add(1)
	d.active.Add(1)
	go func() {
		defer d.wg.Done()
		if runTask(d.log, d.name, task) {
			d.panics.Add(1)
		}
		d.active.Add(-1)
		d.completed.Add(1)
	}()
	return nil
}

// Shutdown rejects new tasks and waits for running ones.
func (d *Dedicated) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return waitGroup(ctx, d.name, &d.wg)
}

// Stats returns a snapshot of the executor counters.
func (d *Dedicated) Stats() Stats {
	return Stats{Name: d.name, Active: d.active.Load(), Completed: d.completed.Load(), Panics: d.panics.Load()}
}

// Bounded runs every task on its own goroutine but lets at most limit of them
// execute at once. Submit never waits for a slot.
type Bounded struct {
	Dedicated
	limit int64
	sem   *semaphore.Weighted
}

// NewBounded returns a goroutine-per-task executor capped at limit concurrent tasks.
func NewBounded(name string, limit int) (*Bounded, error) {
	if limit < 1 {
		return nil, errors.InvalidArgument("limit", "must be at least 1")
	}
	return &Bounded{
		Dedicated: Dedicated{name: name, log: logger.Get(logger.ComponentExecutor)},
		limit:     int64(limit),
		sem:       semaphore.NewWeighted(int64(limit)),
	}, nil
}

// Submit starts a goroutine that waits for a slot and then runs task.
func (b *Bounded) Submit(task func()) error {
	if task == nil {
		return errors.InvalidArgument("task", "must not be nil")
	}
	return b.Dedicated.Submit(func() {
		// Background: a queued task always runs once admitted to Submit.
		if err := b.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer b.sem.Release(1)
		task()
	})
}

// Stats returns a snapshot of the executor counters.
func (b *Bounded) Stats() Stats {
	s := b.Dedicated.Stats()
	s.Workers = int(b.limit)
	return s
}

func waitGroup(ctx context.Context, name string, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor %s: shutdown: %w", name, ctx.Err())
	}
}
