// Package metrics exposes consumer activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "widget_consumer"

// Prometheus implements consumer.Metrics. Create it with [New]; every
// collector is registered on the supplied registry.
type Prometheus struct {
	registry *prometheus.Registry

	received       prometheus.Counter
	acknowledged   prometheus.Counter
	skipped        prometheus.Counter
	deadLettered   prometheus.Counter
	retried        prometheus.Counter
	staleHandles   prometheus.Counter
	receiveErrors  prometheus.Counter
	inFlight       prometheus.Gauge
	processingTime *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
}

// New creates the collectors and registers them on registry. It panics if
// a collector is already registered, like prometheus.MustRegister.
func New(registry *prometheus.Registry) *Prometheus {
	m := &Prometheus{
		registry:      registry,
		received:      counter("messages_received_total", "Messages received from the queue"),
		acknowledged:  counter("messages_acknowledged_total", "Messages written and deleted"),
		skipped:       counter("messages_skipped_total", "Messages with a request type that is not written"),
		deadLettered:  counter("messages_dead_lettered_total", "Messages removed from normal processing"),
		retried:       counter("messages_retried_total", "Messages left on the queue for redelivery"),
		staleHandles:  counter("stale_handles_total", "Commits skipped because the lease had expired"),
		receiveErrors: counter("receive_errors_total", "Failed receive calls"),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "messages_in_flight",
			Help:      "Messages currently being processed",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time from dispatch to outcome per message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_messages",
			Help:      "Approximate number of messages in the source queue by state",
		}, []string{"state"}),
	}

	registry.MustRegister(
		m.received,
		m.acknowledged,
		m.skipped,
		m.deadLettered,
		m.retried,
		m.staleHandles,
		m.receiveErrors,
		m.inFlight,
		m.processingTime,
		m.queueDepth,
	)

	return m
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Prometheus) MessagesReceived(n int) {
	m.received.Add(float64(n))
}

func (m *Prometheus) MessageAcknowledged() {
	m.acknowledged.Inc()
}

func (m *Prometheus) MessageSkipped() {
	m.skipped.Inc()
}

func (m *Prometheus) MessageDeadLettered() {
	m.deadLettered.Inc()
}

func (m *Prometheus) MessageRetried() {
	m.retried.Inc()
}

func (m *Prometheus) StaleHandle() {
	m.staleHandles.Inc()
}

func (m *Prometheus) ReceiveError() {
	m.receiveErrors.Inc()
}

func (m *Prometheus) InFlight(delta int) {
	m.inFlight.Add(float64(delta))
}

func (m *Prometheus) ObserveProcessing(outcome string, d time.Duration) {
	m.processingTime.WithLabelValues(outcome).Observe(d.Seconds())
}

// QueueDepth records the approximate queue attributes last read from the
// source queue.
func (m *Prometheus) QueueDepth(available, inFlight, delayed int) {
	m.queueDepth.WithLabelValues("available").Set(float64(available))
	m.queueDepth.WithLabelValues("in_flight").Set(float64(inFlight))
	m.queueDepth.WithLabelValues("delayed").Set(float64(delayed))
}
