package executor

import (
	"fmt"
	"runtime/debug"

	"github.com/kbukum/reactkit/logger"
)

// Executor runs submitted functions asynchronously. Implementations must be
// safe for concurrent use and must not block the caller of Submit.
type Executor interface {
	Submit(task func()) error
}

// Func adapts a plain function to Executor. Func(func(f func()) { go f() })
// is the simplest goroutine-per-task executor.
type Func func(task func())

// Submit calls f.
func (f Func) Submit(task func()) error {
	f(task)
	return nil
}

// Stats is a point-in-time view of an executor.
type Stats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Rejected  int64  `json:"rejected"`
	Panics    int64  `json:"panics"`
}

// runTask runs task and turns a panic into a log line so a misbehaving task
// cannot take a worker down with it. It reports whether task panicked.
func runTask(log *logger.Logger, name string, task func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			log.Error("Task panicked", logger.Fields(
				"executor", name,
				logger.FieldError, fmt.Sprint(r),
				"stack", string(debug.Stack()),
			))
		}
	}()
	task()
	return false
}
