package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/kbukum/reactkit/errors"
)

// Kind identifies a scheduling discipline.
type Kind int

const (
	// None pulls as fast as subscribers accept values.
	None Kind = iota
	// FixedDelay waits a fixed interval after each pull completes.
	FixedDelay
	// FixedRate ticks at start + k*interval regardless of pull duration.
	FixedRate
	// Cron ticks at every match of a cron expression against wall-clock time.
	Cron
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case FixedDelay:
		return "fixed_delay"
	case FixedRate:
		return "fixed_rate"
	case Cron:
		return "cron"
	default:
		return "unknown"
	}
}

// Spec is an immutable schedule description. The zero value is None.
type Spec struct {
	kind     Kind
	interval time.Duration
	expr     string
	cron     *cronexpr.Expression
}

// Immediate returns a Spec that never waits.
func Immediate() Spec { return Spec{} }

// NewFixedDelay returns a fixed-delay Spec. d must be positive.
func NewFixedDelay(d time.Duration) (Spec, error) {
	if d <= 0 {
		return Spec{}, errors.InvalidSchedule(fmt.Sprintf("fixed delay must be positive, got %s", d))
	}
	return Spec{kind: FixedDelay, interval: d}, nil
}

// NewFixedRate returns a fixed-rate Spec. d must be positive.
func NewFixedRate(d time.Duration) (Spec, error) {
	if d <= 0 {
		return Spec{}, errors.InvalidSchedule(fmt.Sprintf("fixed rate must be positive, got %s", d))
	}
	return Spec{kind: FixedRate, interval: d}, nil
}

// NewCron parses expr with cronexpr. Five fields are minute to day-of-week;
// seven fields add a leading seconds field and a trailing year.
func NewCron(expr string) (Spec, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Spec{}, errors.InvalidSchedule("cron expression is empty")
	}
	parsed, err := cronexpr.Parse(expr)
	if err != nil {
		return Spec{}, errors.InvalidSchedule(fmt.Sprintf("cron expression %q: %v", expr, err)).WithCause(err)
	}
	return Spec{kind: Cron, expr: expr, cron: parsed}, nil
}

// Parse builds a Spec from its configuration form.
func Parse(kind string, interval time.Duration, expr string) (Spec, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return Immediate(), nil
	case "fixed_delay":
		return NewFixedDelay(interval)
	case "fixed_rate":
		return NewFixedRate(interval)
	case "cron":
		return NewCron(expr)
	default:
		return Spec{}, errors.InvalidSchedule("unknown schedule kind " + kind)
	}
}

// Kind returns the scheduling discipline.
func (s Spec) Kind() Kind { return s.kind }

// Interval returns the fixed interval, or 0 for None and Cron.
func (s Spec) Interval() time.Duration { return s.interval }

// Expr returns the cron expression, or "" for other kinds.
func (s Spec) Expr() string { return s.expr }

// Next returns the first tick strictly after from. A zero time means the
// schedule has no further ticks. None ticks at from.
func (s Spec) Next(from time.Time) time.Time {
	switch s.kind {
	case FixedDelay, FixedRate:
		return from.Add(s.interval)
	case Cron:
		return s.cron.Next(from)
	default:
		return from
	}
}

func (s Spec) String() string {
	switch s.kind {
	case FixedDelay, FixedRate:
		return s.kind.String() + " " + s.interval.String()
	case Cron:
		return "cron " + s.expr
	default:
		return s.kind.String()
	}
}
