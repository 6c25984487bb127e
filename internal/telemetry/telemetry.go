// Package telemetry wires OpenTelemetry tracing/metrics and the Prometheus
// /metrics endpoint, adapted from the teacher's internal/observability
// package to the room-synchronization domain's own instruments.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Init configures the trace and metric providers with stdout exporters (as
// the teacher does) and returns a shutdown function plus the Recorder for
// the room-sync-specific instruments.
func Init(serviceName, serviceVersion string) (*Recorder, func(context.Context) error, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		attribute.String("environment", os.Getenv("ENVIRONMENT")),
	)

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	otel.SetMeterProvider(meterProvider)

	recorder, err := newRecorder(meterProvider.Meter(serviceName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	cleanup := func(ctx context.Context) error {
		var errs []error
		if err := tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
		if len(errs) > 0 {
			return fmt.Errorf("failed to shutdown telemetry: %v", errs)
		}
		return nil
	}

	slog.Info("telemetry initialized")
	return recorder, cleanup, nil
}

// Recorder holds the room-sync-specific OpenTelemetry instruments.
type Recorder struct {
	waitTimeoutMs metric.Float64Histogram
	syncTimeoutMs metric.Float64Histogram
	rollovers     metric.Int64Counter
	janitorSweep  metric.Float64Histogram
}

func newRecorder(meter metric.Meter) (*Recorder, error) {
	waitTimeoutMs, err := meter.Float64Histogram("sync.wait_timeout_ms",
		metric.WithDescription("time spent in the slow-joiner wait of Room.Sync"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	syncTimeoutMs, err := meter.Float64Histogram("sync.sync_timeout_ms",
		metric.WithDescription("time spent in the consensus wait of Room.Sync"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	rollovers, err := meter.Int64Counter("sync.round_rollovers",
		metric.WithDescription("count of sync rounds that rolled over to a fresh record"))
	if err != nil {
		return nil, err
	}
	janitorSweep, err := meter.Float64Histogram("janitor.sweep_duration_ms",
		metric.WithDescription("duration of one janitor sweep across both registries"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		waitTimeoutMs: waitTimeoutMs,
		syncTimeoutMs: syncTimeoutMs,
		rollovers:     rollovers,
		janitorSweep:  janitorSweep,
	}, nil
}

// RecordWaitTimeout records time spent in the slow-joiner wait, in ms.
func (r *Recorder) RecordWaitTimeout(ctx context.Context, ms float64) {
	r.waitTimeoutMs.Record(ctx, ms)
}

// RecordSyncTimeout records time spent in the consensus wait, in ms.
func (r *Recorder) RecordSyncTimeout(ctx context.Context, ms float64) {
	r.syncTimeoutMs.Record(ctx, ms)
}

// RecordRollover increments the round-rollover counter.
func (r *Recorder) RecordRollover(ctx context.Context) {
	r.rollovers.Add(ctx, 1)
}

// RecordJanitorSweep records the duration of one janitor sweep, in ms.
func (r *Recorder) RecordJanitorSweep(ctx context.Context, ms float64) {
	r.janitorSweep.Record(ctx, ms)
}

// NewNoop returns a Recorder backed by a no-op meter, for callers (tests,
// one-off tools) that need a Handlers or Janitor without standing up the
// full stdout exporter pipeline.
func NewNoop() *Recorder {
	recorder, err := newRecorder(noop.NewMeterProvider().Meter("noop"))
	if err != nil {
		panic(err)
	}
	return recorder
}
