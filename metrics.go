package socketmode

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "socketmode"

// metrics holds the Prometheus collectors for a client. A nil *metrics
// records nothing.
type metrics struct {
	envelopesTotal  *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	disconnects     *prometheus.CounterVec
	reconnectsTotal prometheus.Counter
	acksTotal       prometheus.Counter
	connectDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		envelopesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "envelopes_total",
			Help:      "Envelopes received, by envelope type",
		}, []string{"type"}),

		decodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decode_failures_total",
			Help:      "Messages that could not be decoded, by classified kind",
		}, []string{"kind"}),

		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "disconnects_total",
			Help:      "Disconnects handled, by reason",
		}, []string{"reason"}),

		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnects_total",
			Help:      "Successful reconnects after a disconnect",
		}),

		acksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "acks_total",
			Help:      "Acknowledgements sent",
		}),

		connectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "connect_duration_seconds",
			Help:      "Time to open a session, from API call to websocket handshake",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) envelope(typ string) {
	if m == nil {
		return
	}
	m.envelopesTotal.WithLabelValues(typ).Inc()
}

func (m *metrics) decodeFailure(kind Kind) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(kind.String()).Inc()
}

func (m *metrics) disconnect(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *metrics) reconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

func (m *metrics) ack() {
	if m == nil {
		return
	}
	m.acksTotal.Inc()
}

func (m *metrics) connected(start time.Time) {
	if m == nil {
		return
	}
	m.connectDuration.Observe(time.Since(start).Seconds())
}
