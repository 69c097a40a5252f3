package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"

	"github.com/kbukum/reactkit/component"
	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/validation"
)

// PoolConfig configures a fixed worker pool.
type PoolConfig struct {
	// Name identifies the pool in logs, metrics and the component registry.
	Name string
	// Workers is the number of worker goroutines.
	Workers int
	// MaxQueued bounds the backlog. Submit fails with ErrExecutorSaturated
	// once it is reached. 0 means unbounded.
	MaxQueued int
	// Logger defaults to logger.Get("executor").
	Logger *logger.Logger
}

// Pool runs tasks on at most Workers goroutines of a pond pool. Its queue is
// unbounded unless MaxQueued is set and Submit never blocks, so tasks may
// submit follow-up tasks from inside a worker.
type Pool struct {
	name      string
	workers   int
	maxQueued int
	log       *logger.Logger
	pool      pond.Pool

	stopOnce sync.Once
	stopped  pond.Task
	closed   atomic.Bool

	queued    atomic.Int64
	active    atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

// NewPool creates a pool of cfg.Workers workers.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Name == "" {
		cfg.Name = "pool"
	}
	if err := validation.New().
		Range("workers", cfg.Workers, 1, 4096).
		Min("max_queued", cfg.MaxQueued, 0).
		Err(); err != nil {
		return nil, err
	}

	log := logger.Get(logger.ComponentExecutor)
	if cfg.Logger != nil {
		log = cfg.Logger.WithComponent(logger.ComponentExecutor)
	}
	opts := []pond.Option{}
	if cfg.MaxQueued > 0 {
		opts = append(opts, pond.WithQueueSize(cfg.MaxQueued), pond.WithNonBlocking(true))
	}

	p := &Pool{
		name:      cfg.Name,
		workers:   cfg.Workers,
		maxQueued: cfg.MaxQueued,
		log:       log,
		pool:      pond.NewPool(cfg.Workers, opts...),
	}
	p.log.Debug("Pool started", logger.Fields("executor", p.name, "workers", p.workers))
	return p, nil
}

// Submit queues task for execution.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return errors.InvalidArgument("task", "must not be nil")
	}
	if p.closed.Load() {
		p.rejected.Add(1)
		return errors.ExecutorClosed(p.name)
	}
	if p.maxQueued > 0 && p.queued.Load() >= int64(p.maxQueued) {
		p.rejected.Add(1)
		return errors.ExecutorSaturated(p.name, p.maxQueued)
	}

	p.queued.Add(1)
	t := p.pool.Submit(func() {
		p.queued.Add(-1)
		p.active.Add(1)
		if runTask(p.log, p.name, task) {
			p.panics.Add(1)
		}
		p.active.Add(-1)
		p.completed.Add(1)
	})

	// A rejected task is done at once.
	select {
	case <-t.Done():
		switch err := t.Wait(); {
		case stderrors.Is(err, pond.ErrQueueFull):
			p.queued.Add(-1)
			p.rejected.Add(1)
			return errors.ExecutorSaturated(p.name, p.maxQueued)
		case stderrors.Is(err, pond.ErrPoolStopped):
			p.queued.Add(-1)
			p.rejected.Add(1)
			return errors.ExecutorClosed(p.name)
		}
	default:
	}
	return nil
}

// Shutdown stops accepting tasks, lets the workers drain the queue and
// waits for them to finish or for ctx to end. It may be called again after
// a timeout to keep waiting.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.closed.Store(true)
		p.stopped = p.pool.Stop()
	})

	select {
	case <-p.stopped.Done():
		p.log.Debug("Pool stopped", logger.Fields("executor", p.name, "completed", p.completed.Load()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor %s: shutdown: %w", p.name, ctx.Err())
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Workers:   p.workers,
		Queued:    int(p.queued.Load()),
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}

// --- component.Component ---

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Start is a no-op; workers run from NewPool on.
func (p *Pool) Start(_ context.Context) error {
	if p.closed.Load() {
		return errors.ExecutorClosed(p.name)
	}
	return nil
}

// Stop shuts the pool down.
func (p *Pool) Stop(ctx context.Context) error { return p.Shutdown(ctx) }

// Health reports degraded while the backlog is at its limit.
func (p *Pool) Health(_ context.Context) component.Health {
	s := p.Stats()
	switch {
	case p.closed.Load():
		return component.Health{Name: p.name, Status: component.StatusUnhealthy, Message: "shut down"}
	case p.maxQueued > 0 && s.Queued >= p.maxQueued:
		return component.Health{Name: p.name, Status: component.StatusDegraded, Message: "backlog full"}
	default:
		return component.Health{Name: p.name, Status: component.StatusHealthy}
	}
}

// Describe implements component.Describable.
func (p *Pool) Describe() component.Description {
	details := fmt.Sprintf("workers=%d", p.workers)
	if p.maxQueued > 0 {
		details += fmt.Sprintf(" max_queued=%d", p.maxQueued)
	}
	return component.Description{Name: p.name, Type: "executor", Details: details}
}
