package react

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/executor"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/observability"
)

// Run is one execution of a task pipeline: the tasks created by Dispatch,
// the stages appended to them and the executor they run on. The executor is
// borrowed; a Run never shuts it down.
type Run struct {
	id   string
	name string
	exec executor.Executor
	ctx  context.Context
	log  *logger.Logger
	rc   *observability.RunContext
	err  error

	mu        sync.Mutex
	stages    []*descriptor
	capture   func(*StageError)
	pending   []*StageError // reported before Capture was set
	outbox    []*StageError // reported, not yet delivered
	submitErr error
}

// Option configures a Run.
type Option func(*runOptions)

type runOptions struct {
	name    string
	log     *logger.Logger
	metrics *observability.Metrics
	ctx     context.Context
}

// WithName names the run in logs, spans and metrics.
func WithName(name string) Option {
	return func(o *runOptions) { o.name = name }
}

// WithLogger sets the run logger. Defaults to logger.Get("react").
func WithLogger(l *logger.Logger) Option {
	return func(o *runOptions) { o.log = l }
}

// WithMetrics records stage outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *runOptions) { o.metrics = m }
}

// WithContext sets the parent context passed to stage functions. It is not
// cancelled when a collection breaks out early.
func WithContext(ctx context.Context) Option {
	return func(o *runOptions) { o.ctx = ctx }
}

// New creates a run bound to exec. A nil exec is reported by the first
// terminal call on any of the run's stages.
func New(exec executor.Executor, opts ...Option) *Run {
	o := runOptions{name: "run", ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.Get(logger.ComponentReact)
	if o.log != nil {
		log = o.log.WithComponent(logger.ComponentReact)
	}

	id := uuid.NewString()
	r := &Run{
		id:   id,
		name: o.name,
		exec: exec,
		log:  log.WithFields(logger.Fields(logger.FieldRunID, id, "run", o.name)),
		rc:   observability.NewRunContext(id, o.name, o.metrics),
	}
	r.ctx = logger.ContextWith(o.ctx, logger.FieldRunID, id)
	if exec == nil {
		r.err = errors.InvalidArgument("executor", "must not be nil")
	}
	return r
}

// ID returns the run's unique id.
func (r *Run) ID() string { return r.id }

// Name returns the run name.
func (r *Run) Name() string { return r.name }

// Elapsed returns the time since the run was created.
func (r *Run) Elapsed() time.Duration { return r.rc.Elapsed() }

// --- stage arena ---

type stageKind uint8

const (
	kindSupply stageKind = iota
	kindMap
	kindRecover
	kindAllOf
)

type cellState uint8

const (
	cellPending cellState = iota
	cellRunning
	cellDone
)

// cell is the state of one task at one stage.
type cell struct {
	state cellState
	value any
	err   *StageError
}

// descriptor is one entry of the stage arena. Stages refer to their parent
// by index, never by pointer.
type descriptor struct {
	index  int
	parent int // -1 for a root stage
	kind   stageKind

	supply  []func(context.Context) (any, error)
	apply   func(context.Context, any) (any, error)
	recover func(context.Context, *StageError) (any, error)
	gather  func(context.Context, []any) (any, error)

	children []int
	recovers bool // a recovery stage is attached

	cells   []cell
	tracker *tracker
	first   int // task of the first success, -1 if none
	last    int // task of the latest success, -1 if none
}

// job is one (task, stage) execution waiting to be submitted.
type job struct {
	d          *descriptor
	task       int
	fn         func(context.Context) (any, error)
	recovering *StageError
}

// addStage appends d to the arena and schedules every cell that is already
// able to run.
func (r *Run) addStage(d *descriptor) int {
	r.mu.Lock()
	d.index = len(r.stages)
	d.first, d.last = -1, -1
	d.tracker = newTracker(len(d.cells), r.rc.StartTime)
	r.stages = append(r.stages, d)

	var jobs []job
	if d.parent < 0 {
		for i := range d.cells {
			jobs = r.ready(d, i, jobs)
		}
	} else {
		p := r.stages[d.parent]
		p.children = append(p.children, d.index)
		if d.kind == kindRecover {
			p.recovers = true
		}
		for i := range p.cells {
			if p.cells[i].err != nil {
				r.report(p.cells[i].err)
			}
		}
		if d.kind == kindAllOf {
			if p.tracker.terminal() {
				jobs = r.readyAllOf(d, jobs)
			}
		} else {
			for i := range p.cells {
				if p.cells[i].state == cellDone {
					jobs = r.ready(d, i, jobs)
				}
			}
		}
	}
	r.mu.Unlock()

	r.deliver()
	r.submit(jobs)
	return d.index
}

// ready moves cell (d, task) out of pending now that its input is known.
// Cells that need no execution are settled in place. Must hold r.mu.
func (r *Run) ready(d *descriptor, task int, jobs []job) []job {
	d.tracker.dispatched++
	d.cells[task].state = cellRunning

	if d.kind == kindSupply {
		return append(jobs, job{d: d, task: task, fn: d.supply[task]})
	}

	in := r.stages[d.parent].cells[task]
	switch {
	case d.kind == kindRecover && in.err != nil && in.err.Stage == d.parent:
		se := in.err
		return append(jobs, job{d: d, task: task, recovering: se, fn: func(ctx context.Context) (any, error) {
			return d.recover(ctx, se)
		}})
	case in.err != nil:
		return r.fail(d, task, in.err, jobs)
	case d.kind == kindRecover:
		return r.succeed(d, task, in.value, false, jobs)
	default:
		v := in.value
		return append(jobs, job{d: d, task: task, fn: func(ctx context.Context) (any, error) {
			return d.apply(ctx, v)
		}})
	}
}

// readyAllOf schedules the single cell of an AllOf stage. Must hold r.mu.
func (r *Run) readyAllOf(d *descriptor, jobs []job) []job {
	if d.cells[0].state != cellPending {
		return jobs
	}
	d.tracker.dispatched++
	d.cells[0].state = cellRunning

	p := r.stages[d.parent]
	values := make([]any, 0, len(p.cells))
	for _, c := range p.cells {
		if c.err == nil {
			values = append(values, c.value)
		}
	}
	return append(jobs, job{d: d, task: 0, fn: func(ctx context.Context) (any, error) {
		return d.gather(ctx, values)
	}})
}

// succeed settles a cell with a value and schedules its children. Must hold r.mu.
func (r *Run) succeed(d *descriptor, task int, v any, recovered bool, jobs []job) []job {
	c := &d.cells[task]
	c.state, c.value = cellDone, v
	if d.first < 0 {
		d.first = task
	}
	d.last = task

	d.tracker.completed++
	if recovered {
		d.tracker.errors++
	}
	d.tracker.broadcast()
	return r.propagate(d, task, jobs)
}

// fail settles a cell with a failure and passes it on. Must hold r.mu.
func (r *Run) fail(d *descriptor, task int, se *StageError, jobs []job) []job {
	c := &d.cells[task]
	c.state, c.err = cellDone, se

	d.tracker.errors++
	d.tracker.failed++
	d.tracker.broadcast()
	return r.propagate(d, task, jobs)
}

func (r *Run) propagate(d *descriptor, task int, jobs []job) []job {
	if se := d.cells[task].err; se != nil && len(d.children) > 0 {
		r.report(se)
	}
	for _, idx := range d.children {
		child := r.stages[idx]
		if child.kind == kindAllOf {
			if d.tracker.terminal() {
				jobs = r.readyAllOf(child, jobs)
			}
			continue
		}
		jobs = r.ready(child, task, jobs)
	}
	return jobs
}

// submit hands jobs to the executor. Must not hold r.mu: executors may run
// the job inline.
func (r *Run) submit(jobs []job) {
	for _, j := range jobs {
		j := j
		if err := r.exec.Submit(func() { r.execute(j) }); err != nil {
			r.log.Warn("Stage submission rejected", logger.MergeWithError(
				logger.Fields(logger.FieldStage, j.d.index, logger.FieldTask, j.task), err))
			r.mu.Lock()
			if r.submitErr == nil {
				r.submitErr = err
			}
			r.mu.Unlock()
			r.complete(j, nil, err)
		}
	}
}

func (r *Run) execute(j job) {
	ctx, span := r.rc.StartStage(r.ctx, j.d.index, j.task)
	started := time.Now()
	v, err := call(ctx, j.fn)

	recovered := j.recovering != nil && err == nil
	observed := err
	if recovered {
		observed = j.recovering.Err
	}
	r.rc.EndStage(ctx, span, j.d.index, started, observed, recovered)

	r.complete(j, v, err)
}

// complete records the outcome of a job. A failure of a stage that already
// has children is reported to the capture handler before it is counted.
func (r *Run) complete(j job, v any, err error) {
	if err == nil {
		if j.recovering != nil {
			r.log.Debug("Failure recovered", logger.Fields(logger.FieldStage, j.recovering.Stage, logger.FieldTask, j.task))
		}
		r.mu.Lock()
		jobs := r.succeed(j.d, j.task, v, j.recovering != nil, nil)
		r.mu.Unlock()
		r.deliver()
		r.submit(jobs)
		return
	}

	se := &StageError{RunID: r.id, Task: j.task, Stage: j.d.index, Err: err}
	r.log.Debug("Stage failed", logger.MergeWithError(logger.Fields(logger.FieldStage, se.Stage, logger.FieldTask, se.Task), err))

	r.mu.Lock()
	if len(j.d.children) > 0 {
		r.report(se)
	}
	r.mu.Unlock()
	r.deliver()

	r.mu.Lock()
	jobs := r.fail(j.d, j.task, se, nil)
	r.mu.Unlock()
	r.deliver()
	r.submit(jobs)
}

// await blocks until stage idx satisfies done, re-checking after every
// update of the stage. Failures terminal at the stage are reported before
// done sees a snapshot counting them. done runs without the run lock.
func (r *Run) await(ctx context.Context, idx int, done func(Status) bool) (Status, error) {
	for {
		r.mu.Lock()
		d := r.stages[idx]
		for i := range d.cells {
			if d.cells[i].err != nil {
				r.report(d.cells[i].err)
			}
		}
		st, changed := d.tracker.snapshot(), d.tracker.changed
		r.mu.Unlock()
		r.deliver()

		if done(st) {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (r *Run) status(idx int) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages[idx].tracker.snapshot()
}

func (r *Run) tasks(idx int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stages[idx].cells)
}

func (r *Run) fatal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submitErr
}
