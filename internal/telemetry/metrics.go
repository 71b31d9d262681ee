package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters recorded by the request orchestrator.
// A zero Metrics is not usable; build one with NewMetrics.
type Metrics struct {
	jobsSubmitted metric.Int64Counter
	jobsFinished  metric.Int64Counter
	rejected      metric.Int64Counter
	transitions   metric.Int64Counter
}

func NewMetrics() *Metrics {
	meter := Meter("devcompanion/chat")
	submitted, _ := meter.Int64Counter("companion.jobs.submitted",
		metric.WithDescription("Analysis jobs accepted for background execution"))
	finished, _ := meter.Int64Counter("companion.jobs.finished",
		metric.WithDescription("Analysis jobs that reached a terminal status"))
	rejected, _ := meter.Int64Counter("companion.requests.rejected",
		metric.WithDescription("Requests refused by rate limiting or admission control"))
	transitions, _ := meter.Int64Counter("companion.chat.transitions",
		metric.WithDescription("Conversation state machine transitions taken"))
	return &Metrics{
		jobsSubmitted: submitted,
		jobsFinished:  finished,
		rejected:      rejected,
		transitions:   transitions,
	}
}

// RegisterActiveJobs reports the current number of queued and running jobs.
func (m *Metrics) RegisterActiveJobs(active func() int) {
	meter := Meter("devcompanion/chat")
	_, _ = meter.Int64ObservableGauge("companion.jobs.active",
		metric.WithDescription("Jobs currently queued or running"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(active()))
			return nil
		}),
	)
}

func (m *Metrics) JobSubmitted(ctx context.Context) {
	if m == nil || m.jobsSubmitted == nil {
		return
	}
	m.jobsSubmitted.Add(ctx, 1)
}

func (m *Metrics) JobFinished(ctx context.Context, status, errorKind string) {
	if m == nil || m.jobsFinished == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("status", status)}
	if errorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", errorKind))
	}
	m.jobsFinished.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) Rejected(ctx context.Context, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) Transition(ctx context.Context, name string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", name)))
}
