package hotstream

import (
	"context"
	"sync"
)

// State is the lifecycle state of a hot stream.
type State int32

const (
	Running State = iota
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// controller holds the state machine shared by the publish loop and the
// callers of Pause, Resume and Stop. Stopped is terminal.
type controller struct {
	mu      sync.Mutex
	state   State
	changed chan struct{}
}

func newController() *controller {
	return &controller{state: Running, changed: make(chan struct{})}
}

func (c *controller) get() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// set moves to next and reports the previous state. ok is false when the
// controller is already stopped.
func (c *controller) set(next State) (prev State, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.state
	if prev == Stopped {
		return prev, false
	}
	if prev != next {
		c.state = next
		close(c.changed)
		c.changed = make(chan struct{})
	}
	return prev, true
}

// await blocks while paused. It returns false once the controller is
// stopped or ctx is done.
func (c *controller) await(ctx context.Context) bool {
	for {
		c.mu.Lock()
		state, changed := c.state, c.changed
		c.mu.Unlock()

		switch state {
		case Running:
			return ctx.Err() == nil
		case Stopped:
			return false
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}
