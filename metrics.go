package ubus

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets defines the round-trip latency histogram buckets in
// nanoseconds, logarithmically spaced from 10us to 10s.
var LatencyBuckets = []uint64{
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 7

// Metrics tracks call volume, completion outcomes, and round-trip
// latency for a Context. Grounded on the teacher's atomic-counter
// Metrics type, retargeted from I/O operation counters to bus call
// counters.
type Metrics struct {
	RequestsStarted   atomic.Uint64
	RequestsCompleted atomic.Uint64
	RequestsTimedOut  atomic.Uint64
	RequestsAborted   atomic.Uint64

	NotifyDispatches atomic.Uint64
	NotifyPeerTotal  atomic.Uint64

	TotalLatencyNs atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordStart records that a request was dispatched.
func (m *Metrics) RecordStart() {
	m.RequestsStarted.Add(1)
}

// RecordComplete records a request's terminal status and latency.
func (m *Metrics) RecordComplete(code StatusCode, latencyNs uint64) {
	switch code {
	case StatusTimeout:
		m.RequestsTimedOut.Add(1)
	default:
		m.RequestsCompleted.Add(1)
	}
	m.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordAbort records a locally-aborted request (never reached the
// daemon, or torn down before a STATUS arrived).
func (m *Metrics) RecordAbort() {
	m.RequestsAborted.Add(1)
}

// RecordNotify records a notify fan-out dispatch across peers peers.
func (m *Metrics) RecordNotify(peers uint32) {
	m.NotifyDispatches.Add(1)
	m.NotifyPeerTotal.Add(uint64(peers))
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	RequestsStarted   uint64
	RequestsCompleted uint64
	RequestsTimedOut  uint64
	RequestsAborted   uint64
	NotifyDispatches  uint64
	NotifyPeerTotal   uint64
	AvgLatencyNs      uint64
	UptimeNs          uint64
	LatencyHistogram  [numLatencyBuckets]uint64
}

// Snapshot returns a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		RequestsStarted:   m.RequestsStarted.Load(),
		RequestsCompleted: m.RequestsCompleted.Load(),
		RequestsTimedOut:  m.RequestsTimedOut.Load(),
		RequestsAborted:   m.RequestsAborted.Load(),
		NotifyDispatches:  m.NotifyDispatches.Load(),
		NotifyPeerTotal:   m.NotifyPeerTotal.Load(),
		UptimeNs:          uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}

	completed := snap.RequestsCompleted + snap.RequestsTimedOut
	if completed > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / completed
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes all counters, useful for testing.
func (m *Metrics) Reset() {
	m.RequestsStarted.Store(0)
	m.RequestsCompleted.Store(0)
	m.RequestsTimedOut.Store(0)
	m.RequestsAborted.Store(0)
	m.NotifyDispatches.Store(0)
	m.NotifyPeerTotal.Store(0)
	m.TotalLatencyNs.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
}

// Observer receives lifecycle notifications for every request and
// notify dispatch, matching internal/iface.Observer.
type Observer interface {
	OnRequestStart(seq uint32, method string)
	OnRequestComplete(seq uint32, code int32, dur time.Duration)
	OnNotifyDispatch(seq uint32, peers uint32)
}

// NoOpObserver discards every notification.
type NoOpObserver struct{}

func (NoOpObserver) OnRequestStart(uint32, string)                {}
func (NoOpObserver) OnRequestComplete(uint32, int32, time.Duration) {}
func (NoOpObserver) OnNotifyDispatch(uint32, uint32)               {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) OnRequestStart(seq uint32, method string) {
	o.metrics.RecordStart()
}

func (o *MetricsObserver) OnRequestComplete(seq uint32, code int32, dur time.Duration) {
	o.metrics.RecordComplete(StatusCode(code), uint64(dur.Nanoseconds()))
}

func (o *MetricsObserver) OnNotifyDispatch(seq uint32, peers uint32) {
	o.metrics.RecordNotify(peers)
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)

// PrometheusCollector adapts Metrics to prometheus.Collector, letting a
// caller register it on their own registry instead of scraping
// Snapshot by hand.
type PrometheusCollector struct {
	metrics *Metrics

	requestsStarted   *prometheus.Desc
	requestsCompleted *prometheus.Desc
	requestsTimedOut  *prometheus.Desc
	notifyDispatches  *prometheus.Desc
	avgLatencySeconds *prometheus.Desc
}

// NewPrometheusCollector wraps m for registration with a
// prometheus.Registerer.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	return &PrometheusCollector{
		metrics:           m,
		requestsStarted:   prometheus.NewDesc("ubus_requests_started_total", "Total requests dispatched.", nil, nil),
		requestsCompleted: prometheus.NewDesc("ubus_requests_completed_total", "Total requests completed with a status.", nil, nil),
		requestsTimedOut:  prometheus.NewDesc("ubus_requests_timed_out_total", "Total requests that timed out locally.", nil, nil),
		notifyDispatches:  prometheus.NewDesc("ubus_notify_dispatches_total", "Total notify fan-out dispatches.", nil, nil),
		avgLatencySeconds: prometheus.NewDesc("ubus_request_latency_seconds_avg", "Average request round-trip latency.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsStarted
	ch <- c.requestsCompleted
	ch <- c.requestsTimedOut
	ch <- c.notifyDispatches
	ch <- c.avgLatencySeconds
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.requestsStarted, prometheus.CounterValue, float64(snap.RequestsStarted))
	ch <- prometheus.MustNewConstMetric(c.requestsCompleted, prometheus.CounterValue, float64(snap.RequestsCompleted))
	ch <- prometheus.MustNewConstMetric(c.requestsTimedOut, prometheus.CounterValue, float64(snap.RequestsTimedOut))
	ch <- prometheus.MustNewConstMetric(c.notifyDispatches, prometheus.CounterValue, float64(snap.NotifyDispatches))
	ch <- prometheus.MustNewConstMetric(c.avgLatencySeconds, prometheus.GaugeValue, float64(snap.AvgLatencyNs)/1e9)
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)
