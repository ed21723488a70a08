package pagecache

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the counters of a PageCacheTracer as Prometheus metrics.
// Aggregate totals are unlabelled; per-worker totals carry a "worker" label.
type Collector struct {
	tracer PageCacheTracer

	pins       *prometheus.Desc
	unpins     *prometheus.Desc
	hits       *prometheus.Desc
	faults     *prometheus.Desc
	bytesRead  *prometheus.Desc
	workerPins *prometheus.Desc
	workerHits *prometheus.Desc
}

// NewCollector creates a collector reading from tracer
func NewCollector(tracer PageCacheTracer, namespace string) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "pagecache", n)
	}
	return &Collector{
		tracer:     tracer,
		pins:       prometheus.NewDesc(name("pins_total"), "Total number of page pins", nil, nil),
		unpins:     prometheus.NewDesc(name("unpins_total"), "Total number of page unpins", nil, nil),
		hits:       prometheus.NewDesc(name("hits_total"), "Total number of page cache hits", nil, nil),
		faults:     prometheus.NewDesc(name("faults_total"), "Total number of page faults", nil, nil),
		bytesRead:  prometheus.NewDesc(name("read_bytes_total"), "Total bytes read while serving page faults", nil, nil),
		workerPins: prometheus.NewDesc(name("worker_pins_total"), "Page pins attributed to a worker", []string{"worker"}, nil),
		workerHits: prometheus.NewDesc(name("worker_hits_total"), "Page cache hits attributed to a worker", []string{"worker"}, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pins
	ch <- c.unpins
	ch <- c.hits
	ch <- c.faults
	ch <- c.bytesRead
	ch <- c.workerPins
	ch <- c.workerHits
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	total := c.tracer.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.pins, prometheus.CounterValue, float64(total.Pins))
	ch <- prometheus.MustNewConstMetric(c.unpins, prometheus.CounterValue, float64(total.Unpins))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(total.Hits))
	ch <- prometheus.MustNewConstMetric(c.faults, prometheus.CounterValue, float64(total.Faults))
	ch <- prometheus.MustNewConstMetric(c.bytesRead, prometheus.CounterValue, float64(total.BytesRead))

	for _, id := range c.tracer.WorkerIDs() {
		counts := c.tracer.WorkerCounts(id)
		label := strconv.Itoa(id)
		ch <- prometheus.MustNewConstMetric(c.workerPins, prometheus.CounterValue, float64(counts.Pins), label)
		ch <- prometheus.MustNewConstMetric(c.workerHits, prometheus.CounterValue, float64(counts.Hits), label)
	}
}
