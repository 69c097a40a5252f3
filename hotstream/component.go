package hotstream

import (
	"context"
	"fmt"

	"github.com/kbukum/reactkit/component"
	"github.com/kbukum/reactkit/errors"
)

// Handle is the type-independent view of a hot stream used by the gateway
// and the component registry.
type Handle interface {
	ID() string
	Name() string
	State() State
	Stats() Stats
	Stop()
	Done() <-chan struct{}
	Err() error
}

// Controller is implemented by pausable streams.
type Controller interface {
	Handle
	Pause() error
	Resume() error
}

var (
	_ Handle     = (*HotStream[int])(nil)
	_ Controller = (*Pausable[int])(nil)
)

// Component adapts a stream to component.Component so the registry can
// report its health and stop it on shutdown.
func Component(h Handle) component.Component {
	return &streamComponent{h: h}
}

type streamComponent struct {
	h Handle
}

func (c *streamComponent) Name() string { return c.h.Name() }

// Start fails for a stream that has already stopped; a running stream needs
// no further start.
func (c *streamComponent) Start(_ context.Context) error {
	if c.h.State() == Stopped {
		return errors.StreamStopped(c.h.Name())
	}
	return nil
}

// Stop stops the stream and waits for its loop to exit.
func (c *streamComponent) Stop(ctx context.Context) error {
	c.h.Stop()
	select {
	case <-c.h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *streamComponent) Health(_ context.Context) component.Health {
	name := c.h.Name()
	switch c.h.State() {
	case Paused:
		return component.Health{Name: name, Status: component.StatusDegraded, Message: "paused"}
	case Stopped:
		if err := c.h.Err(); err != nil {
			return component.Health{Name: name, Status: component.StatusUnhealthy, Message: err.Error()}
		}
		return component.Health{Name: name, Status: component.StatusUnhealthy, Message: "stopped"}
	default:
		return component.Health{Name: name, Status: component.StatusHealthy}
	}
}

func (c *streamComponent) Describe() component.Description {
	s := c.h.Stats()
	return component.Description{
		Name:    s.Name,
		Type:    "hotstream",
		Details: fmt.Sprintf("%s subscribers=%d", s.Schedule, s.Subscribers),
	}
}
