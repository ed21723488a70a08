package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a check pool. A nil *Metrics
// disables collection.
type Metrics struct {
	RecordsSubmitted prometheus.Counter
	RecordsProcessed prometheus.Counter
	RecordsFailed    prometheus.Counter
	ActiveWorkers    prometheus.Gauge
	ProcessLatency   prometheus.Histogram
}

// NewMetrics creates the pool collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	const subsystem = "checkpool"

	m := &Metrics{
		RecordsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_submitted_total",
			Help:      "Total number of records accepted into worker queues",
		}),
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_processed_total",
			Help:      "Total number of records processed without error",
		}),
		RecordsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_failed_total",
			Help:      "Total number of records whose processing returned an error",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_workers",
			Help:      "Number of workers that are initialized and not yet terminated",
		}),
		ProcessLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "process_latency_seconds",
			Help:      "Histogram of per-record processing latency",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.RecordsSubmitted,
		m.RecordsProcessed,
		m.RecordsFailed,
		m.ActiveWorkers,
		m.ProcessLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) submitted() {
	if m != nil {
		m.RecordsSubmitted.Inc()
	}
}

func (m *Metrics) processed(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.RecordsFailed.Inc()
	} else {
		m.RecordsProcessed.Inc()
	}
	m.ProcessLatency.Observe(d.Seconds())
}

func (m *Metrics) workerStarted() {
	if m != nil {
		m.ActiveWorkers.Inc()
	}
}

func (m *Metrics) workerStopped() {
	if m != nil {
		m.ActiveWorkers.Dec()
	}
}
