package observability

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector provides hooks for pipeline metrics collection
type MetricsCollector interface {
	IncPublished()
	IncPublishFailed()
	IncRejected()
	IncReceived()
	IncProcessed()
	IncFailed()
	IncForwarded()
	IncForwardFailed()
	IncSkipped()
}

// InMemoryMetrics is a simple in-memory implementation for testing
type InMemoryMetrics struct {
	Published     atomic.Int64
	PublishFailed atomic.Int64
	Rejected      atomic.Int64
	Received      atomic.Int64
	Processed     atomic.Int64
	Failed        atomic.Int64
	Forwarded     atomic.Int64
	ForwardFailed atomic.Int64
	Skipped       atomic.Int64
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) IncPublished()     { m.Published.Add(1) }
func (m *InMemoryMetrics) IncPublishFailed() { m.PublishFailed.Add(1) }
func (m *InMemoryMetrics) IncRejected()      { m.Rejected.Add(1) }
func (m *InMemoryMetrics) IncReceived()      { m.Received.Add(1) }
func (m *InMemoryMetrics) IncProcessed()     { m.Processed.Add(1) }
func (m *InMemoryMetrics) IncFailed()        { m.Failed.Add(1) }
func (m *InMemoryMetrics) IncForwarded()     { m.Forwarded.Add(1) }
func (m *InMemoryMetrics) IncForwardFailed() { m.ForwardFailed.Add(1) }
func (m *InMemoryMetrics) IncSkipped()       { m.Skipped.Add(1) }

func (m *InMemoryMetrics) GetPublished() int64     { return m.Published.Load() }
func (m *InMemoryMetrics) GetPublishFailed() int64 { return m.PublishFailed.Load() }
func (m *InMemoryMetrics) GetRejected() int64      { return m.Rejected.Load() }
func (m *InMemoryMetrics) GetReceived() int64      { return m.Received.Load() }
func (m *InMemoryMetrics) GetProcessed() int64     { return m.Processed.Load() }
func (m *InMemoryMetrics) GetFailed() int64        { return m.Failed.Load() }
func (m *InMemoryMetrics) GetForwarded() int64     { return m.Forwarded.Load() }
func (m *InMemoryMetrics) GetForwardFailed() int64 { return m.ForwardFailed.Load() }
func (m *InMemoryMetrics) GetSkipped() int64       { return m.Skipped.Load() }

// OTelMetrics records the pipeline counters on an OpenTelemetry meter.
type OTelMetrics struct {
	published     metric.Int64Counter
	publishFailed metric.Int64Counter
	rejected      metric.Int64Counter
	received      metric.Int64Counter
	processed     metric.Int64Counter
	failed        metric.Int64Counter
	forwarded     metric.Int64Counter
	forwardFailed metric.Int64Counter
	skipped       metric.Int64Counter
}

func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.published, "pipeline.messages.published", "Messages written to the topic"},
		{&m.publishFailed, "pipeline.messages.publish_failed", "Messages the broker client failed to write"},
		{&m.rejected, "pipeline.requests.rejected", "Publish requests rejected before reaching the broker"},
		{&m.received, "pipeline.messages.received", "Messages fetched from the topic"},
		{&m.processed, "pipeline.messages.processed", "Messages handled without error"},
		{&m.failed, "pipeline.messages.failed", "Fetch or handler failures"},
		{&m.forwarded, "pipeline.messages.forwarded", "Messages accepted by the persistence service"},
		{&m.forwardFailed, "pipeline.messages.forward_failed", "Forward attempts that failed"},
		{&m.skipped, "pipeline.messages.skipped", "Messages intentionally not forwarded"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

func (m *OTelMetrics) IncPublished()     { m.published.Add(context.Background(), 1) }
func (m *OTelMetrics) IncPublishFailed() { m.publishFailed.Add(context.Background(), 1) }
func (m *OTelMetrics) IncRejected()      { m.rejected.Add(context.Background(), 1) }
func (m *OTelMetrics) IncReceived()      { m.received.Add(context.Background(), 1) }
func (m *OTelMetrics) IncProcessed()     { m.processed.Add(context.Background(), 1) }
func (m *OTelMetrics) IncFailed()        { m.failed.Add(context.Background(), 1) }
func (m *OTelMetrics) IncForwarded()     { m.forwarded.Add(context.Background(), 1) }
func (m *OTelMetrics) IncForwardFailed() { m.forwardFailed.Add(context.Background(), 1) }
func (m *OTelMetrics) IncSkipped()       { m.skipped.Add(context.Background(), 1) }
