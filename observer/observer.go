// Package observer provides OTEL-based observability for almanac pipeline
// runs.
//
// It wraps Plugin and KnowledgeBase with instrumented versions that emit
// traces and metrics via OpenTelemetry. Users export to any OTEL-compatible
// backend by setting standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/almanac-ai/almanac/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Counters
	PipelineRuns metric.Int64Counter
	PluginRuns   metric.Int64Counter
	SyncOps      metric.Int64Counter
	FactsSaved   metric.Int64Counter

	// Histograms
	PluginDuration metric.Float64Histogram
	SyncDuration   metric.Float64Histogram
}

// Init sets up OTEL trace and metric providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc.). Returns a shutdown function that
// must be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("almanac")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	inst, err := NewInstruments()
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	return inst, shutdown, nil
}

// NewInstruments creates instruments against the globally registered
// providers. Useful in tests with a manual reader.
func NewInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)

	inst := &Instruments{Tracer: tracer, Meter: meter}
	var err error

	if inst.PipelineRuns, err = meter.Int64Counter("almanac.pipeline.runs",
		metric.WithDescription("Pipeline passes executed")); err != nil {
		return nil, err
	}
	if inst.PluginRuns, err = meter.Int64Counter("almanac.plugin.runs",
		metric.WithDescription("Plugin invocations by status")); err != nil {
		return nil, err
	}
	if inst.SyncOps, err = meter.Int64Counter("almanac.sync.operations",
		metric.WithDescription("Remote knowledge-base operations by op and status")); err != nil {
		return nil, err
	}
	if inst.FactsSaved, err = meter.Int64Counter("almanac.facts.saved",
		metric.WithDescription("Facts persisted via the webhook")); err != nil {
		return nil, err
	}
	if inst.PluginDuration, err = meter.Float64Histogram("almanac.plugin.duration",
		metric.WithDescription("Plugin run duration"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if inst.SyncDuration, err = meter.Float64Histogram("almanac.sync.duration",
		metric.WithDescription("Remote operation duration"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return inst, nil
}
