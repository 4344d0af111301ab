package ingestion

import (
	"sync"
	"time"

	"fluoride-monitor/internal/metrics"
)

// ewmaWeight is the share of the newest sample in AverageProcessingTime.
const ewmaWeight = 0.2

// IngestMetrics counts what happened to MQTT telemetry messages.
// Received counts queued messages; every queued message ends up in exactly
// one of Processed, Rejected or Failed.
type IngestMetrics struct {
	MessagesReceived      int64
	MessagesProcessed     int64
	MessagesRejected      int64
	MessagesFailed        int64
	MessagesDropped       int64
	AlertsRaised          int64
	LastProcessedAt       time.Time
	AverageProcessingTime time.Duration
	BufferSize            int
}

// MetricsTracker guards IngestMetrics and mirrors the queue depth to
// Prometheus.
type MetricsTracker struct {
	mu      sync.Mutex
	metrics IngestMetrics
}

func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{}
}

func (t *MetricsTracker) Update(fn func(*IngestMetrics)) {
	t.mu.Lock()
	fn(&t.metrics)
	depth := t.metrics.BufferSize
	t.mu.Unlock()

	metrics.SetIngestQueueDepth(depth)
}

func (t *MetricsTracker) Snapshot() IngestMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

func (m *IngestMetrics) recordProcessed(at time.Time, took time.Duration) {
	m.MessagesProcessed++
	m.LastProcessedAt = at
	if m.MessagesProcessed == 1 {
		m.AverageProcessingTime = took
		return
	}
	m.AverageProcessingTime = time.Duration(ewmaWeight*float64(took) + (1-ewmaWeight)*float64(m.AverageProcessingTime))
}
