package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "aquamon_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	pollCycles  *prometheus.CounterVec
	pollLatency *prometheus.HistogramVec

	decodeWarnings prometheus.Counter
	readingsTotal  prometheus.Counter

	storeWrites  *prometheus.CounterVec
	storeRetries prometheus.Counter
	storeDrops   prometheus.Counter
	storeLatency *prometheus.HistogramVec

	activeAlarms *prometheus.GaugeVec

	queryRequests *prometheus.CounterVec
	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers the process's self-metrics with the default registry.
// Safe to call more than once; only the first call registers.
func Init() {
	registerOnce.Do(func() {
		pollCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_cycles_total",
				Help: "Total poll cycles by outcome",
			},
			[]string{"outcome"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_latency_seconds",
				Help:    "Device poll latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		decodeWarnings = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "decode_warnings_total",
				Help: "Total data points dropped for implausible values",
			},
		)
		readingsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_total",
				Help: "Total decoded readings across all metrics",
			},
		)

		storeWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_writes_total",
				Help: "Total store batch writes by result",
			},
			[]string{"result"},
		)
		storeRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_write_retries_total",
				Help: "Total store write retry attempts",
			},
		)
		storeDrops = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_dropped_batches_total",
				Help: "Total batches dropped after retry exhaustion",
			},
		)
		storeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_write_latency_seconds",
				Help:    "Store batch write latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		activeAlarms = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alarms",
				Help: "Standing alarms awaiting an operator, 1 when active",
			},
			[]string{"kind"},
		)

		queryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_requests_total",
				Help: "Total query API requests by endpoint and result",
			},
			[]string{"endpoint", "result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total dataset exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Dataset export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			pollCycles,
			pollLatency,
			decodeWarnings,
			readingsTotal,
			storeWrites,
			storeRetries,
			storeDrops,
			storeLatency,
			activeAlarms,
			queryRequests,
			exportTotal,
			exportLatency,
		)
	})
}

// ObservePollCycle records one poll cycle's outcome and duration.
func ObservePollCycle(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if pollCycles != nil {
		pollCycles.WithLabelValues(outcome).Inc()
	}
	if pollLatency != nil {
		pollLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// AddDecodeWarnings increments the dropped-point counter by count.
func AddDecodeWarnings(count int) {
	if count <= 0 {
		return
	}
	if decodeWarnings != nil {
		decodeWarnings.Add(float64(count))
	}
}

// AddReadings increments the decoded-reading counter by count.
func AddReadings(count int) {
	if count <= 0 {
		return
	}
	if readingsTotal != nil {
		readingsTotal.Add(float64(count))
	}
}

// ObserveStoreWrite records one batch write attempt's result and duration.
func ObserveStoreWrite(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if storeWrites != nil {
		storeWrites.WithLabelValues(result).Inc()
	}
	if storeLatency != nil {
		storeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncStoreRetry increments the write retry counter.
func IncStoreRetry() {
	if storeRetries != nil {
		storeRetries.Inc()
	}
}

// IncStoreDrop increments the dropped-batch counter.
func IncStoreDrop() {
	if storeDrops != nil {
		storeDrops.Inc()
	}
}

// SetAlarmActive sets one standing alarm's gauge to 1 (active) or 0.
func SetAlarmActive(kind string, active bool) {
	if kind == "" || activeAlarms == nil {
		return
	}
	value := 0.0
	if active {
		value = 1.0
	}
	activeAlarms.WithLabelValues(kind).Set(value)
}

// IncQueryRequest increments the query API request counter.
func IncQueryRequest(endpoint, result string) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if queryRequests != nil {
		queryRequests.WithLabelValues(endpoint, result).Inc()
	}
}

// ObserveExport records one dataset export's format, result, and duration.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported result constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
