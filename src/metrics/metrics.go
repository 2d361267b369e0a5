// Package metrics records collection run counters through OpenTelemetry.
// Without a configured MeterProvider the global no-op provider is used.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "capitolwatch.collector"

// Recorder holds the collector instruments. A nil *Recorder records nothing.
type Recorder struct {
	records        metric.Int64Counter
	runs           metric.Int64Counter
	sourceFailures metric.Int64Counter
	runDuration    metric.Float64Histogram
	sourceDuration metric.Float64Histogram
}

// New creates the instruments on the given provider, or the global one when
// mp is nil.
func New(mp metric.MeterProvider) (*Recorder, error) {
	var meter metric.Meter
	if mp == nil {
		meter = otel.Meter(instrumentationName)
	} else {
		meter = mp.Meter(instrumentationName)
	}

	r := &Recorder{}
	var err error
	if r.records, err = meter.Int64Counter("capitolwatch.records.total",
		metric.WithDescription("Records processed, by source and outcome"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, err
	}
	if r.runs, err = meter.Int64Counter("capitolwatch.runs.total",
		metric.WithDescription("Collection runs finished, by status"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	if r.sourceFailures, err = meter.Int64Counter("capitolwatch.source.failures.total",
		metric.WithDescription("Sources that ended Failed or Cancelled"),
		metric.WithUnit("{source}"),
	); err != nil {
		return nil, err
	}
	if r.runDuration, err = meter.Float64Histogram("capitolwatch.run.duration",
		metric.WithDescription("Collection run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1800),
	); err != nil {
		return nil, err
	}
	if r.sourceDuration, err = meter.Float64Histogram("capitolwatch.source.duration",
		metric.WithDescription("Per-source fetch and reconcile duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordOutcomes adds per-outcome record counts for one source.
func (r *Recorder) RecordOutcomes(ctx context.Context, source string, counts map[string]int) {
	if r == nil {
		return
	}
	for outcome, n := range counts {
		if n == 0 {
			continue
		}
		r.records.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordSource records a finished source.
func (r *Recorder) RecordSource(ctx context.Context, source, status string, d time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source), attribute.String("status", status))
	r.sourceDuration.Record(ctx, d.Seconds(), attrs)
	if status != "Ok" {
		r.sourceFailures.Add(ctx, 1, attrs)
	}
}

// RecordRun records a finished run.
func (r *Recorder) RecordRun(ctx context.Context, status, trigger string, d time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status), attribute.String("trigger", trigger))
	r.runs.Add(ctx, 1, attrs)
	r.runDuration.Record(ctx, d.Seconds(), attrs)
}
