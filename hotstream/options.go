package hotstream

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/observability"
	"github.com/kbukum/reactkit/queue"
	"github.com/kbukum/reactkit/schedule"
)

// DefaultQueueCapacity is the capacity of queues created by Connect.
const DefaultQueueCapacity = 16

// Option configures a hot stream.
type Option func(*options)

type options struct {
	name     string
	capacity int
	policy   queue.Policy
	spec     schedule.Spec
	clock    clock.Clock
	log      *logger.Logger
	metrics  *observability.Metrics
	ctx      context.Context
}

func defaultOptions() options {
	return options{
		name:     "hotstream",
		capacity: DefaultQueueCapacity,
		policy:   queue.Block,
		spec:     schedule.Immediate(),
		ctx:      context.Background(),
	}
}

// WithName names the stream in logs, metrics and the gateway.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithQueueCapacity sets the capacity of queues created by Connect.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithOverflow sets the policy of queues created by Connect.
func WithOverflow(p queue.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithSchedule paces upstream pulls.
func WithSchedule(spec schedule.Spec) Option {
	return func(o *options) { o.spec = spec }
}

// WithClock sets the time source for the schedule and for OnePer views.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithLogger sets the stream logger. Defaults to logger.Get("hotstream").
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records pulls, deliveries and drops on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithContext sets the parent context of the publish loop. Cancelling it
// stops the stream.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}
