package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fluoride_monitor_"

	resultSuccess = "success"
	resultInvalid = "invalid"
	resultError   = "error"
	resultSkipped = "skipped"
)

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultInvalid = resultInvalid
	ResultError   = resultError
	ResultSkipped = resultSkipped

	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

var (
	registerOnce sync.Once

	ingestTotal   *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec

	relayCommands *prometheus.CounterVec

	alertsEvaluated *prometheus.CounterVec

	syncPolls *prometheus.CounterVec

	ingestQueueDepth prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the service metrics with the default registry. Calling it
// more than once is a no-op; recorders are no-ops until it runs.
func Init() {
	registerOnce.Do(func() {
		ingestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_total",
				Help: "Total readings submitted by source and result",
			},
			[]string{"source", "result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)

		relayCommands = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "relay_commands_total",
				Help: "Total relay state changes by desired state and result",
			},
			[]string{"state", "result"},
		)

		alertsEvaluated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_evaluated_total",
				Help: "Total alert events derived by kind",
			},
			[]string{"kind"},
		)

		syncPolls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_polls_total",
				Help: "Total sync loop polls by result",
			},
			[]string{"result"},
		)

		ingestQueueDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "mqtt_queue_depth",
				Help: "MQTT telemetry messages waiting for a worker",
			},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		prometheus.MustRegister(
			ingestTotal,
			ingestLatency,
			relayCommands,
			alertsEvaluated,
			syncPolls,
			ingestQueueDepth,
			httpRequests,
			httpLatency,
		)
	})
}

// ObserveIngest records one ingest attempt.
func ObserveIngest(source, result string, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if ingestTotal != nil {
		ingestTotal.WithLabelValues(source, result).Inc()
	}
	if ingestLatency != nil && result == resultSuccess {
		ingestLatency.WithLabelValues(source).Observe(duration.Seconds())
	}
}

func IncRelayCommand(state, result string) {
	if relayCommands != nil {
		relayCommands.WithLabelValues(state, result).Inc()
	}
}

// AddAlerts counts derived alert events of one kind.
func AddAlerts(kind string, count int) {
	if count <= 0 {
		return
	}
	if alertsEvaluated != nil {
		alertsEvaluated.WithLabelValues(kind).Add(float64(count))
	}
}

func SetIngestQueueDepth(n int) {
	if ingestQueueDepth != nil {
		ingestQueueDepth.Set(float64(n))
	}
}

func IncSyncPoll(result string) {
	if syncPolls != nil {
		syncPolls.WithLabelValues(result).Inc()
	}
}

func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}
