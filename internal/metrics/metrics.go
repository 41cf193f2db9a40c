// Package metrics exposes gateway counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat"

// Collector implements gateway.Metrics and session.ReapObserver.
type Collector struct {
	connections     prometheus.Gauge
	authRejected    prometheus.Counter
	persisted       prometheus.Counter
	persistLatency  prometheus.Histogram
	persistFailed   prometheus.Counter
	publishFailed   prometheus.Counter
	framesDelivered prometheus.Counter
	eventsRejected  *prometheus.CounterVec
	sessionsReaped  prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Authenticated streaming connections held by this process.",
		}),
		authRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejected_total",
			Help:      "Connections closed during the handshake.",
		}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Messages appended to the message store.",
		}),
		persistLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_append_seconds",
			Help:      "Latency of successful message appends.",
			Buckets:   prometheus.DefBuckets,
		}),
		persistFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persist_failed_total",
			Help:      "Messages rejected because the store failed or timed out.",
		}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_publish_failed_total",
			Help:      "Events persisted or emitted locally but not published to the bus.",
		}),
		framesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_delivered_total",
			Help:      "Bus frames handed to local connections.",
		}),
		eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Inbound events refused, by reason.",
		}, []string{"reason"}),
		sessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Expired sessions deleted by the reaper.",
		}),
	}

	reg.MustRegister(
		c.connections,
		c.authRejected,
		c.persisted,
		c.persistLatency,
		c.persistFailed,
		c.publishFailed,
		c.framesDelivered,
		c.eventsRejected,
		c.sessionsReaped,
	)

	return c
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }

func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) AuthRejected() { c.authRejected.Inc() }

func (c *Collector) MessagePersisted(d time.Duration) {
	c.persisted.Inc()
	c.persistLatency.Observe(d.Seconds())
}

func (c *Collector) PersistenceFailed() { c.persistFailed.Inc() }

func (c *Collector) PublishFailed() { c.publishFailed.Inc() }

func (c *Collector) FramesDelivered(n int) { c.framesDelivered.Add(float64(n)) }

func (c *Collector) EventRejected(reason string) { c.eventsRejected.WithLabelValues(reason).Inc() }

func (c *Collector) SessionsReaped(n int64) { c.sessionsReaped.Add(float64(n)) }

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
