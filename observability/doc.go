// Package observability provides OpenTelemetry tracing and metrics for task
// pipelines, hot streams and the stream gateway.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
// Every stage execution of a react run gets a "react.stage" span carrying
// the run id, stage index and task index.
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("reactd"))
//
// A nil *Metrics is valid and records nothing.
//
// Health:
//
//	health := observability.NewServiceHealth("reactd", version)
//	health.AddComponents(registry.HealthAll(ctx))
package observability
