package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatlink"

// Metrics holds the client's collectors.
type Metrics struct {
	connectAttempts  prometheus.Counter
	connectionsOpen  prometheus.Gauge
	closes           *prometheus.CounterVec
	reconnects       prometheus.Counter
	reconnectDelay   prometheus.Histogram
	giveUps          prometheus.Counter
	framesReceived   *prometheus.CounterVec
	framesMalformed  prometheus.Counter
	dispatched       prometheus.Counter
	duplicates       prometheus.Counter
	outboundSent     prometheus.Counter
	outboundRejected prometheus.Counter
	queueDepth       *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Websocket connection attempts.",
		}),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Conversation connections currently open.",
		}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_closes_total",
			Help:      "Connection closes by reason code.",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect timers armed.",
		}),
		reconnectDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconnect_delay_seconds",
			Help:      "Delay chosen by the reconnect policy.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		giveUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_give_ups_total",
			Help:      "Sessions abandoned after exhausting reconnect attempts.",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Decoded inbound frames by kind.",
		}, []string{"kind"}),
		framesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_malformed_total",
			Help:      "Inbound frames dropped because they failed to decode or validate.",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Messages delivered to the UI callback.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_duplicate_total",
			Help:      "Messages suppressed by the recently-seen window.",
		}),
		outboundSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_sent_total",
			Help:      "Outbound items handed to an open transport.",
		}),
		outboundRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_rejected_total",
			Help:      "Flushes interrupted by a transport send failure.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbound_queue_depth",
			Help:      "Items waiting in the outbound queue.",
		}, []string{"conversation"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.connectAttempts,
			m.connectionsOpen,
			m.closes,
			m.reconnects,
			m.reconnectDelay,
			m.giveUps,
			m.framesReceived,
			m.framesMalformed,
			m.dispatched,
			m.duplicates,
			m.outboundSent,
			m.outboundRejected,
			m.queueDepth,
		)
	}

	return m
}

// ConnectAttempt records a dial.
func (m *Metrics) ConnectAttempt() {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
}

// Opened records a connection reaching open.
func (m *Metrics) Opened() {
	if m == nil {
		return
	}
	m.connectionsOpen.Inc()
}

// Closed records a close. wasOpen tells whether the connection had opened.
func (m *Metrics) Closed(reason string, wasOpen bool) {
	if m == nil {
		return
	}
	if wasOpen {
		m.connectionsOpen.Dec()
	}
	m.closes.WithLabelValues(reason).Inc()
}

// ReconnectScheduled records an armed reconnect timer.
func (m *Metrics) ReconnectScheduled(delay time.Duration) {
	if m == nil {
		return
	}
	m.reconnects.Inc()
	m.reconnectDelay.Observe(delay.Seconds())
}

// GaveUp records a session abandoned by the reconnect policy.
func (m *Metrics) GaveUp() {
	if m == nil {
		return
	}
	m.giveUps.Inc()
}

// FrameReceived records a decoded frame.
func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

// FrameMalformed records a dropped frame.
func (m *Metrics) FrameMalformed() {
	if m == nil {
		return
	}
	m.framesMalformed.Inc()
}

// MessageDispatched records a UI callback invocation.
func (m *Metrics) MessageDispatched() {
	if m == nil {
		return
	}
	m.dispatched.Inc()
}

// DuplicateSuppressed records a message dropped by the dedup window.
func (m *Metrics) DuplicateSuppressed() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// OutboundSent records items accepted by the transport.
func (m *Metrics) OutboundSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboundSent.Add(float64(n))
}

// OutboundRejected records a flush stopped by a send failure.
func (m *Metrics) OutboundRejected() {
	if m == nil {
		return
	}
	m.outboundRejected.Inc()
}

// QueueDepth sets the queue depth for a conversation.
func (m *Metrics) QueueDepth(conversation string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(conversation).Set(float64(n))
}

// Forget drops per-conversation series once a session is torn down.
func (m *Metrics) Forget(conversation string) {
	if m == nil {
		return
	}
	m.queueDepth.DeleteLabelValues(conversation)
}
