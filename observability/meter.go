package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/reactkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the OpenTelemetry instruments recorded by task pipelines,
// hot streams and the stream gateway. A nil *Metrics records nothing, so
// callers never need to guard their calls.
type Metrics struct {
	tasksDispatched   metric.Int64Counter
	tasksCompleted    metric.Int64Counter
	tasksFailed       metric.Int64Counter
	stageErrors       metric.Int64Counter
	stageDuration     metric.Float64Histogram
	elementsPulled    metric.Int64Counter
	elementsDelivered metric.Int64Counter
	elementsDropped   metric.Int64Counter
	subscribers       metric.Int64UpDownCounter
	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	requestActive     metric.Int64UpDownCounter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.tasksDispatched, "react.tasks.dispatched", "Tasks dispatched to a pipeline run"},
		{&m.tasksCompleted, "react.tasks.completed", "Tasks that reached a stage successfully"},
		{&m.tasksFailed, "react.tasks.failed", "Tasks that ended with an unrecovered stage failure"},
		{&m.stageErrors, "react.stage.errors", "Stage failures, recovered or not"},
		{&m.elementsPulled, "hotstream.elements.pulled", "Elements pulled from a hot stream source"},
		{&m.elementsDelivered, "hotstream.elements.delivered", "Elements accepted by subscriber queues"},
		{&m.elementsDropped, "hotstream.elements.dropped", "Elements discarded by drop-policy subscribers"},
		{&m.requestTotal, "gateway.request.total", "Gateway requests"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	if m.stageDuration, err = meter.Float64Histogram("react.stage.duration",
		metric.WithDescription("Duration of a single stage execution in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating react.stage.duration histogram: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram("gateway.request.duration",
		metric.WithDescription("Duration of gateway requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating gateway.request.duration histogram: %w", err)
	}
	if m.subscribers, err = meter.Int64UpDownCounter("hotstream.subscribers",
		metric.WithDescription("Currently connected subscribers"),
	); err != nil {
		return nil, fmt.Errorf("creating hotstream.subscribers gauge: %w", err)
	}
	if m.requestActive, err = meter.Int64UpDownCounter("gateway.request.active",
		metric.WithDescription("Currently open gateway requests, including event feeds"),
	); err != nil {
		return nil, fmt.Errorf("creating gateway.request.active gauge: %w", err)
	}
	return &m, nil
}

// RecordDispatched counts n tasks dispatched to a run.
func (m *Metrics) RecordDispatched(ctx context.Context, run string, n int) {
	if m == nil {
		return
	}
	m.tasksDispatched.Add(ctx, int64(n), metric.WithAttributes(attribute.String("run", run)))
}

// RecordStage records one stage execution. recovered is only meaningful when
// err is non-nil.
func (m *Metrics) RecordStage(ctx context.Context, run string, stage int, duration time.Duration, err error, recovered bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("run", run), attribute.Int("stage", stage))
	m.stageDuration.Record(ctx, duration.Seconds(), attrs)
	switch {
	case err == nil:
		m.tasksCompleted.Add(ctx, 1, attrs)
	case recovered:
		m.stageErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("run", run), attribute.Int("stage", stage), attribute.Bool("recovered", true)))
	default:
		m.stageErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("run", run), attribute.Int("stage", stage), attribute.Bool("recovered", false)))
		m.tasksFailed.Add(ctx, 1, attrs)
	}
}

// RecordPulled counts one element pulled by a hot stream.
func (m *Metrics) RecordPulled(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.elementsPulled.Add(ctx, 1, metric.WithAttributes(attribute.String("stream", stream)))
}

// RecordOffer counts the outcome of offering one element to one subscriber.
func (m *Metrics) RecordOffer(ctx context.Context, stream, policy string, accepted bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("stream", stream), attribute.String("policy", policy))
	if accepted {
		m.elementsDelivered.Add(ctx, 1, attrs)
	} else {
		m.elementsDropped.Add(ctx, 1, attrs)
	}
}

// RecordDropped counts elements evicted from a subscriber queue.
func (m *Metrics) RecordDropped(ctx context.Context, stream, policy string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.elementsDropped.Add(ctx, n, metric.WithAttributes(attribute.String("stream", stream), attribute.String("policy", policy)))
}

// RecordSubscribers adjusts the connected subscriber count by delta.
func (m *Metrics) RecordSubscribers(ctx context.Context, stream string, delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(ctx, int64(delta), metric.WithAttributes(attribute.String("stream", stream)))
}

// RecordRequestStart increments the active request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, route, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.String("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
	))
}
