package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/almanac-ai/almanac"
)

// ObservedPlugin wraps an almanac.Plugin with OTEL instrumentation.
type ObservedPlugin struct {
	inner almanac.Plugin
	inst  *Instruments
}

var _ almanac.Plugin = (*ObservedPlugin)(nil)

// WrapPlugin returns an instrumented plugin.
func WrapPlugin(inner almanac.Plugin, inst *Instruments) *ObservedPlugin {
	return &ObservedPlugin{inner: inner, inst: inst}
}

// Name delegates to the inner plugin.
func (o *ObservedPlugin) Name() string { return o.inner.Name() }

// Run implements almanac.Plugin, recording a span, a duration sample, and
// a status-tagged run counter around the inner Run.
func (o *ObservedPlugin) Run(ctx context.Context) (string, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "plugin.run", trace.WithAttributes(
		AttrPluginName.String(o.inner.Name()),
	))
	defer span.End()
	start := time.Now()

	text, err := o.inner.Run(ctx)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		AttrPluginStatus.String(status),
		AttrPluginBytes.Int(len(text)),
	)

	attrs := metric.WithAttributes(
		AttrPluginName.String(o.inner.Name()),
		AttrPluginStatus.String(status),
	)
	o.inst.PluginRuns.Add(ctx, 1, attrs)
	o.inst.PluginDuration.Record(ctx, durationMs, attrs)

	return text, err
}
