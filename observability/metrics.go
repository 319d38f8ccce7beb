// Package observability provides a metrics extension that records
// submission lifecycle events through OpenTelemetry, exportable to
// Prometheus. Register it on an environment's hook registry:
//
//	m, handler, err := observability.New(ctx)
//	reg := hook.NewRegistry(logger)
//	reg.Register(m)
//	http.Handle("/metrics", handler)
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hpckit/batchq"
	"github.com/hpckit/batchq/hook"
)

// Compile-time interface checks.
var (
	_ hook.Extension      = (*Metrics)(nil)
	_ hook.JobSubmitted   = (*Metrics)(nil)
	_ hook.JobRejected    = (*Metrics)(nil)
	_ hook.JobCancelled   = (*Metrics)(nil)
	_ hook.QueueRefreshed = (*Metrics)(nil)
)

// Metrics records submission traffic, rejection rates, cancellations,
// refresh activity, and malformed queue-listing lines.
type Metrics struct {
	JobsSubmitted  metric.Int64Counter
	JobsRejected   metric.Int64Counter
	JobsCancelled  metric.Int64Counter
	QueueRefreshes metric.Int64Counter
	ParseSkips     metric.Int64Counter
	SubmitDuration metric.Float64Histogram
}

// New creates a Metrics extension backed by a Prometheus exporter and
// returns the scrape handler alongside it. The meter provider is also
// installed globally.
func New(_ context.Context) (*Metrics, http.Handler, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := NewWithMeter(provider.Meter("batchq"))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

// NewWithMeter creates a Metrics extension on the provided meter, for
// callers that manage their own provider (and for tests).
func NewWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.JobsSubmitted, err = meter.Int64Counter(
		"batchq_jobs_submitted_total",
		metric.WithDescription("Jobs successfully handed off to a backend"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsRejected, err = meter.Int64Counter(
		"batchq_jobs_rejected_total",
		metric.WithDescription("Submissions refused by the state machine, by reason"),
	)
	if err != nil {
		return nil, err
	}

	m.JobsCancelled, err = meter.Int64Counter(
		"batchq_jobs_cancelled_total",
		metric.WithDescription("Cancellation requests issued"),
	)
	if err != nil {
		return nil, err
	}

	m.QueueRefreshes, err = meter.Int64Counter(
		"batchq_queue_refreshes_total",
		metric.WithDescription("Status cache refreshes"),
	)
	if err != nil {
		return nil, err
	}

	m.ParseSkips, err = meter.Int64Counter(
		"batchq_queue_parse_skips_total",
		metric.WithDescription("Malformed queue-listing lines skipped during refresh"),
	)
	if err != nil {
		return nil, err
	}

	m.SubmitDuration, err = meter.Float64Histogram(
		"batchq_submit_duration_seconds",
		metric.WithDescription("End-to-end submission latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Name implements hook.Extension.
func (m *Metrics) Name() string { return "observability-metrics" }

// OnJobSubmitted implements hook.JobSubmitted.
func (m *Metrics) OnJobSubmitted(ctx context.Context, _ batchq.Job, elapsed time.Duration) error {
	m.JobsSubmitted.Add(ctx, 1)
	m.SubmitDuration.Record(ctx, elapsed.Seconds())
	return nil
}

// OnJobRejected implements hook.JobRejected.
func (m *Metrics) OnJobRejected(ctx context.Context, _ batchq.Job, err error) error {
	m.JobsRejected.Add(ctx, 1, metric.WithAttributes(reasonAttr(err)))
	return nil
}

// OnJobCancelled implements hook.JobCancelled.
func (m *Metrics) OnJobCancelled(ctx context.Context, _ string) error {
	m.JobsCancelled.Add(ctx, 1)
	return nil
}

// OnQueueRefreshed implements hook.QueueRefreshed.
func (m *Metrics) OnQueueRefreshed(ctx context.Context, stats hook.RefreshStats) error {
	m.QueueRefreshes.Add(ctx, 1)
	if stats.Skipped > 0 {
		m.ParseSkips.Add(ctx, int64(stats.Skipped))
	}
	return nil
}

func reasonAttr(err error) attribute.KeyValue {
	reason := "other"
	switch {
	case errors.Is(err, batchq.ErrBlocked):
		reason = "blocked"
	case errors.Is(err, batchq.ErrNotReady):
		reason = "not_ready"
	case errors.Is(err, batchq.ErrAlreadyComplete):
		reason = "complete"
	case errors.Is(err, batchq.ErrAlreadyInProgress):
		reason = "in_progress"
	case errors.Is(err, batchq.ErrAlreadyFailed):
		reason = "failed"
	}
	return attribute.String("reason", reason)
}
