package hotstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/executor"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/observability"
	"github.com/kbukum/reactkit/queue"
	"github.com/kbukum/reactkit/schedule"
	"github.com/kbukum/reactkit/stream"
	"github.com/kbukum/reactkit/validation"
)

// Stats is a point-in-time view of a hot stream.
type Stats struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Schedule    string    `json:"schedule"`
	Pausable    bool      `json:"pausable"`
	Subscribers int       `json:"subscribers"`
	Pulled      int64     `json:"pulled"`
	Delivered   int64     `json:"delivered"`
	Dropped     int64     `json:"dropped"`
	StartedAt   time.Time `json:"started_at"`
	Error       string    `json:"error,omitempty"`
}

// HotStream pulls from one upstream sequence on a single executor worker and
// offers every element to each subscriber registered at the time of the
// offer. Elements pulled while nobody is connected are discarded.
// Offers to all subscribers run concurrently, but the next pull waits for
// every offer to finish, so a full blocking subscriber paces the whole
// stream. Subscribers that must not be held up by a slow peer should use a
// drop policy.
type HotStream[T any] struct {
	id       string
	name     string
	pausable bool
	src      *stream.Stream[T]
	opts     options
	trigger  *schedule.Trigger
	clock    clock.Clock
	log      *logger.Logger
	metrics  *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	ctl    *controller

	mu       sync.Mutex
	subs     atomic.Pointer[[]*Connection[T]]
	finished bool
	err      error
	done     chan struct{}
	started  time.Time

	pulled    atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// Pausable is a hot stream whose publish loop can be suspended and resumed.
type Pausable[T any] struct {
	*HotStream[T]
}

// Start begins publishing src on exec. The publish loop is the only task
// submitted to exec and holds one of its workers until the stream stops.
func Start[T any](src *stream.Stream[T], exec executor.Executor, opts ...Option) (*HotStream[T], error) {
	return start(src, exec, false, opts)
}

// StartPausable is Start for a stream that supports Pause and Resume.
func StartPausable[T any](src *stream.Stream[T], exec executor.Executor, opts ...Option) (*Pausable[T], error) {
	h, err := start(src, exec, true, opts)
	if err != nil {
		return nil, err
	}
	return &Pausable[T]{HotStream: h}, nil
}

// ScheduleFixedDelay starts a stream that waits d after each pull completes
// before the next one.
func ScheduleFixedDelay[T any](src *stream.Stream[T], d time.Duration, exec executor.Executor, opts ...Option) (*HotStream[T], error) {
	spec, err := schedule.NewFixedDelay(d)
	if err != nil {
		return nil, err
	}
	return Start(src, exec, append(opts, WithSchedule(spec))...)
}

// ScheduleFixedRate starts a stream that pulls every d, measured from the
// first pull.
func ScheduleFixedRate[T any](src *stream.Stream[T], d time.Duration, exec executor.Executor, opts ...Option) (*HotStream[T], error) {
	spec, err := schedule.NewFixedRate(d)
	if err != nil {
		return nil, err
	}
	return Start(src, exec, append(opts, WithSchedule(spec))...)
}

// Schedule starts a stream that pulls at every match of a cron expression.
// Expressions take an optional leading seconds field and trailing year field.
func Schedule[T any](src *stream.Stream[T], expr string, exec executor.Executor, opts ...Option) (*HotStream[T], error) {
	spec, err := schedule.NewCron(expr)
	if err != nil {
		return nil, err
	}
	return Start(src, exec, append(opts, WithSchedule(spec))...)
}

func start[T any](src *stream.Stream[T], exec executor.Executor, pausable bool, opts []Option) (*HotStream[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := validation.New().
		NotNil("source", src).
		NotNil("executor", exec).
		Min("queue_capacity", o.capacity, 1).
		Err(); err != nil {
		return nil, err
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	log := logger.Get(logger.ComponentHotStream)
	if o.log != nil {
		log = o.log.WithComponent(logger.ComponentHotStream)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(logger.ContextWith(o.ctx, logger.FieldStream, o.name))
	h := &HotStream[T]{
		id:       id,
		name:     o.name,
		pausable: pausable,
		src:      src,
		opts:     o,
		trigger:  schedule.NewTrigger(o.spec, o.clock),
		clock:    o.clock,
		log:      log.WithFields(logger.Fields(logger.FieldStream, o.name, "stream_id", id)),
		metrics:  o.metrics,
		ctx:      ctx,
		cancel:   cancel,
		ctl:      newController(),
		done:     make(chan struct{}),
		started:  o.clock.Now(),
	}
	h.subs.Store(&[]*Connection[T]{})

	if err := exec.Submit(h.run); err != nil {
		cancel()
		return nil, err
	}
	h.log.Info("Hot stream started", logger.Fields(logger.FieldSchedule, o.spec.String(), logger.FieldPolicy, o.policy.String()))
	return h, nil
}

// ID returns the stream's unique id.
func (h *HotStream[T]) ID() string { return h.id }

// Name returns the configured name.
func (h *HotStream[T]) Name() string { return h.name }

// State returns the current lifecycle state.
func (h *HotStream[T]) State() State { return h.ctl.get() }

// Done is closed once the publish loop has exited and every subscriber
// queue is closed.
func (h *HotStream[T]) Done() <-chan struct{} { return h.done }

// Err returns the upstream error that ended the stream, if any.
func (h *HotStream[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop asks the publish loop to exit after its current pull and offer.
// Offers blocked on a full queue are released. Stop does not wait; use Done.
func (h *HotStream[T]) Stop() {
	if prev, ok := h.ctl.set(Stopped); ok {
		h.log.Info("Hot stream stopping", logger.Fields(logger.FieldState, prev.String()))
	}
	h.cancel()
}

// Stats returns a snapshot of the stream counters.
func (h *HotStream[T]) Stats() Stats {
	s := Stats{
		ID:          h.id,
		Name:        h.name,
		State:       h.State().String(),
		Schedule:    h.opts.spec.String(),
		Pausable:    h.pausable,
		Subscribers: len(*h.subs.Load()),
		Pulled:      h.pulled.Load(),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
		StartedAt:   h.started,
	}
	if err := h.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}

// Pause suspends the publish loop before its next pull. Elements already
// queued stay available to consumers.
func (p *Pausable[T]) Pause() error {
	prev, ok := p.ctl.set(Paused)
	if !ok {
		return errors.StreamStopped(p.name)
	}
	if prev != Paused {
		p.log.Info("Hot stream paused")
	}
	return nil
}

// Resume continues publishing with the next unpulled element.
func (p *Pausable[T]) Resume() error {
	prev, ok := p.ctl.set(Running)
	if !ok {
		return errors.StreamStopped(p.name)
	}
	if prev != Running {
		p.log.Info("Hot stream resumed")
	}
	return nil
}

// Unpause is Resume.
func (p *Pausable[T]) Unpause() error { return p.Resume() }

// --- publish loop ---

func (h *HotStream[T]) run() {
	iter := h.src.Iter(h.ctx)
	defer func() {
		_ = iter.Close()
		h.finish()
	}()

	for {
		if !h.ctl.await(h.ctx) {
			return
		}
		if err := h.trigger.Wait(h.ctx); err != nil {
			if h.ctx.Err() == nil {
				h.fail(err)
			}
			return
		}
		// A pause requested while waiting for the tick holds this pull.
		if !h.ctl.await(h.ctx) {
			return
		}

		v, ok, err := h.pull(iter)
		h.trigger.Done()
		if err != nil {
			if h.ctx.Err() == nil {
				h.fail(err)
			}
			return
		}
		if !ok {
			h.log.Debug("Upstream exhausted")
			return
		}
		if err := h.publish(v); err != nil {
			return
		}
	}
}

func (h *HotStream[T]) pull(iter stream.Iterator[T]) (T, bool, error) {
	ctx, span := observability.StartSpan(h.ctx, observability.SpanPull)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrStream, h.name))

	v, ok, err := iter.Next(ctx)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return v, false, err
	}
	if ok {
		h.pulled.Add(1)
		h.metrics.RecordPulled(ctx, h.name)
	}
	return v, ok, nil
}

// publish offers v to every current subscriber, concurrently when there is
// more than one, and returns once every offer has settled.
func (h *HotStream[T]) publish(v T) error {
	subs := *h.subs.Load()
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return h.offer(subs[0], v)
	}

	var g errgroup.Group
	for _, c := range subs {
		g.Go(func() error { return h.offer(c, v) })
	}
	return g.Wait()
}

func (h *HotStream[T]) offer(c *Connection[T], v T) error {
	before := c.q.Dropped()
	accepted, err := c.q.Offer(h.ctx, v)
	if evicted := c.q.Dropped() - before; evicted > 0 {
		h.dropped.Add(evicted)
		h.metrics.RecordDropped(h.ctx, h.name, c.q.Policy().String(), evicted)
	}
	switch {
	case errors.Is(err, errors.ErrQueueClosed):
		h.detach(c)
		return nil
	case err != nil:
		return err
	}
	h.metrics.RecordOffer(h.ctx, h.name, c.q.Policy().String(), accepted)
	if accepted {
		h.delivered.Add(1)
	}
	return nil
}

func (h *HotStream[T]) fail(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	h.log.Error("Hot stream failed", logger.ErrorFields("pull", err))
}

// finish moves to Stopped, closes every subscriber queue and resolves Done.
func (h *HotStream[T]) finish() {
	h.ctl.set(Stopped)
	h.cancel()

	h.mu.Lock()
	h.finished = true
	subs := *h.subs.Swap(&[]*Connection[T]{})
	h.mu.Unlock()

	for _, c := range subs {
		_ = c.q.Close()
		h.metrics.RecordSubscribers(context.Background(), h.name, -1)
	}
	h.log.Info("Hot stream stopped", logger.Fields("pulled", h.pulled.Load(), "delivered", h.delivered.Load(), "dropped", h.dropped.Load()))
	close(h.done)
}

// --- subscribers ---

// Connect subscribes a new queue built from the stream's capacity and
// overflow options.
func (h *HotStream[T]) Connect() (*Connection[T], error) {
	q, err := queue.New[T](h.opts.capacity, h.opts.policy)
	if err != nil {
		return nil, err
	}
	return h.ConnectQueue(q)
}

// ConnectQueue subscribes a caller-supplied queue. The stream closes it when
// the stream stops.
func (h *HotStream[T]) ConnectQueue(q *queue.Queue[T]) (*Connection[T], error) {
	if q == nil {
		return nil, errors.InvalidArgument("queue", "must not be nil")
	}
	c := &Connection[T]{id: uuid.NewString(), stream: h, q: q}

	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return nil, errors.StreamStopped(h.name)
	}
	cur := *h.subs.Load()
	next := make([]*Connection[T], len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, c)
	h.subs.Store(&next)
	h.mu.Unlock()

	h.metrics.RecordSubscribers(h.ctx, h.name, 1)
	h.log.Debug("Subscriber connected", logger.Fields(logger.FieldSubscriber, c.id, logger.FieldPolicy, q.Policy().String()))
	return c, nil
}

// detach removes c from the subscriber set. It reports whether c was present.
func (h *HotStream[T]) detach(c *Connection[T]) bool {
	h.mu.Lock()
	cur := *h.subs.Load()
	next := make([]*Connection[T], 0, len(cur))
	for _, s := range cur {
		if s != c {
			next = append(next, s)
		}
	}
	found := len(next) != len(cur)
	if found {
		h.subs.Store(&next)
	}
	h.mu.Unlock()

	if found {
		h.metrics.RecordSubscribers(context.Background(), h.name, -1)
		h.log.Debug("Subscriber disconnected", logger.Fields(logger.FieldSubscriber, c.id))
	}
	return found
}
