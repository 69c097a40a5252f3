package config

import (
	"fmt"
	"time"

	"github.com/kbukum/reactkit/schedule"
	"github.com/kbukum/reactkit/validation"
)

// Overflow policy names accepted in stream.overflow.
const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop_oldest"
	OverflowDropNewest = "drop_newest"
)

// Schedule kinds accepted in stream.schedule.kind.
const (
	ScheduleNone       = "none"
	ScheduleFixedDelay = "fixed_delay"
	ScheduleFixedRate  = "fixed_rate"
	ScheduleCron       = "cron"
)

// Config is the full configuration of a reactkit process.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Executor ExecutorConfig `yaml:"executor" mapstructure:"executor"`
	Stream   StreamConfig   `yaml:"stream" mapstructure:"stream"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" mapstructure:"tracing"`
}

// ExecutorConfig sizes the shared worker pool.
type ExecutorConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" validate:"min=1,max=4096"`
	// MaxQueued bounds the pool backlog; 0 means unbounded.
	MaxQueued int `yaml:"max_queued" mapstructure:"max_queued" validate:"gte=0"`
}

// StreamConfig holds defaults for hot streams and their subscribers.
type StreamConfig struct {
	QueueCapacity int            `yaml:"queue_capacity" mapstructure:"queue_capacity" validate:"min=1"`
	Overflow      string         `yaml:"overflow" mapstructure:"overflow" validate:"oneof=block drop_oldest drop_newest"`
	Schedule      ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	// ConsumeInterval limits each consumer view to one element per interval; 0 disables.
	ConsumeInterval time.Duration `yaml:"consume_interval" mapstructure:"consume_interval" validate:"gte=0"`
}

// ScheduleConfig selects how a hot stream paces upstream pulls.
type ScheduleConfig struct {
	Kind     string        `yaml:"kind" mapstructure:"kind" validate:"oneof=none fixed_delay fixed_rate cron"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Cron     string        `yaml:"cron" mapstructure:"cron" validate:"required_if=Kind cron,cron"`
}

// HTTPConfig configures the stream gateway.
type HTTPConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr       string `yaml:"addr" mapstructure:"addr"`
	MaxClients int    `yaml:"max_clients" mapstructure:"max_clients" validate:"min=1"`
}

// MetricsConfig configures the OTLP metric exporter.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()

	if c.Executor.Workers == 0 {
		c.Executor.Workers = 8
	}
	if c.Stream.QueueCapacity == 0 {
		c.Stream.QueueCapacity = 16
	}
	if c.Stream.Overflow == "" {
		c.Stream.Overflow = OverflowBlock
	}
	if c.Stream.Schedule.Kind == "" {
		c.Stream.Schedule.Kind = ScheduleNone
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.MaxClients == 0 {
		c.HTTP.MaxClients = 32
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "localhost:4318"
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 15 * time.Second
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
}

// Validate checks the service fields and all struct tags, then the
// cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	s := c.Stream.Schedule
	if (s.Kind == ScheduleFixedDelay || s.Kind == ScheduleFixedRate) && s.Interval <= 0 {
		return fmt.Errorf("config.stream.schedule: %s requires a positive interval", s.Kind)
	}
	if _, err := schedule.Parse(s.Kind, s.Interval, s.Cron); err != nil {
		return fmt.Errorf("config.stream.schedule: %w", err)
	}
	return nil
}

// Load resolves config.yml and .env for serviceName, then applies defaults
// and validates.
func Load(serviceName string, opts ...LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
