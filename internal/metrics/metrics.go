// Package metrics exposes Prometheus metrics for the detection engine and
// serves them, together with the dashboard state, over HTTP.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ransomwatch/internal/detector"
	"ransomwatch/internal/model"
)

// Metrics collects engine metrics on a private registry. It implements
// detector.Observer.
type Metrics struct {
	registry *prometheus.Registry

	events         *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	windowEvents   prometheus.Gauge
	memoryEntries  prometheus.Gauge
	entropySkipped prometheus.Counter
	recordDuration prometheus.Histogram

	mu          sync.Mutex
	lastSkipped uint64
}

// New creates and registers the collectors under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Filesystem events processed, by kind",
		}, []string{"kind"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts fired, by rule and severity",
		}, []string{"rule", "severity"}),
		windowEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_events",
			Help:      "Events currently held in the sliding window",
		}),
		memoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entropy_memory_entries",
			Help:      "Paths whose last entropy score is remembered",
		}),
		entropySkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entropy_skipped_total",
			Help:      "Entropy samples skipped because the file could not be read",
		}),
		recordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_duration_seconds",
			Help:      "Time spent normalizing, recording and evaluating one event",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}

	m.registry.MustRegister(
		m.events, m.alerts, m.windowEvents, m.memoryEntries,
		m.entropySkipped, m.recordDuration,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveEvent(ev model.CanonicalEvent) {
	m.events.WithLabelValues(string(ev.Kind)).Inc()
}

func (m *Metrics) ObserveAlert(a model.Alert) {
	m.alerts.WithLabelValues(string(a.Rule), string(a.Severity)).Inc()
}

func (m *Metrics) ObserveRecord(elapsed time.Duration, stats detector.Stats) {
	m.recordDuration.Observe(elapsed.Seconds())
	m.windowEvents.Set(float64(stats.WindowLen))
	m.memoryEntries.Set(float64(stats.MemoryLen))

	m.mu.Lock()
	if stats.EntropySkipped > m.lastSkipped {
		m.entropySkipped.Add(float64(stats.EntropySkipped - m.lastSkipped))
		m.lastSkipped = stats.EntropySkipped
	}
	m.mu.Unlock()
}
