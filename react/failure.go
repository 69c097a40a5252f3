package react

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/kbukum/reactkit/logger"
)

// StageError is the failure of one task at one stage. A failure that is not
// recovered travels unchanged through every later stage of the task, so
// Stage always names the stage where it originated.
type StageError struct {
	RunID string
	Task  int
	Stage int
	Err   error

	reported bool // guarded by the run lock
}

func (e *StageError) Error() string {
	return fmt.Sprintf("run %s: task %d failed at stage %d: %v", e.RunID, e.Task, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PanicError is the Err of a StageError raised by a panicking stage function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// call runs fn and converts a panic into a PanicError.
func call(ctx context.Context, fn func(context.Context) (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// report queues se for the capture handler once it is known to be
// unrecovered: it reached a child stage, or the stage it failed at is being
// awaited. Failures of a stage with a recovery attached are never reported.
// Must hold r.mu.
func (r *Run) report(se *StageError) {
	if se.reported || r.stages[se.Stage].recovers {
		return
	}
	se.reported = true
	if r.capture == nil {
		r.pending = append(r.pending, se)
		return
	}
	r.outbox = append(r.outbox, se)
}

// deliver passes queued failures to the capture handler. It is called
// without the run lock held.
func (r *Run) deliver() {
	r.mu.Lock()
	handler, out := r.capture, r.outbox
	r.outbox = nil
	r.mu.Unlock()
	for _, se := range out {
		r.invokeCapture(handler, se)
	}
}

func (r *Run) invokeCapture(handler func(*StageError), se *StageError) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Capture handler panicked", logger.Fields(logger.FieldError, fmt.Sprint(p)))
		}
	}()
	handler(se)
}

// setCapture installs handler and replays failures reported before it
// existed, skipping those whose stage has since been given a recovery.
func (r *Run) setCapture(handler func(*StageError)) {
	r.mu.Lock()
	r.capture = handler
	var parked []*StageError
	for _, se := range r.pending {
		if !r.stages[se.Stage].recovers {
			parked = append(parked, se)
		}
	}
	r.pending = nil
	r.mu.Unlock()
	for _, se := range parked {
		r.invokeCapture(handler, se)
	}
}
