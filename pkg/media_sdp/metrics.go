package media_sdp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics собирает Prometheus метрики согласования медиа.
// Нулевой указатель допустим: все методы становятся no-op.
type Metrics struct {
	negotiations     *prometheus.CounterVec
	noReply          prometheus.Counter
	activations      *prometheus.CounterVec
	establishments   *prometheus.CounterVec
	rewrites         prometheus.Counter
	multipartBodies  prometheus.Counter
	stateTransitions *prometheus.CounterVec
}

// NewMetrics создает метрики и регистрирует их в reg.
// При reg == nil метрики создаются без регистрации.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	subsystem := "media_sdp"

	return &Metrics{
		negotiations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "negotiations_total",
			Help:      "SDP negotiation attempts by result",
		}, []string{"kind", "result"}),
		noReply: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "no_reply_total",
			Help:      "Negotiations that suppressed the SIP reply",
		}),
		activations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "activations_total",
			Help:      "RTP transport activations by result",
		}, []string{"result"}),
		establishments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "establishments_total",
			Help:      "Early media establishment attempts by result",
		}, []string{"result"}),
		rewrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sdp_rewrites_total",
			Help:      "Remote SDP bodies changed by sdp_replace rules",
		}),
		multipartBodies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "multipart_bodies_total",
			Help:      "Multipart bodies rendered for outgoing messages",
		}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Negotiation state machine transitions",
		}, []string{"from", "to"}),
	}
}

func (m *Metrics) negotiation(kind SDPType, accepted, shouldReply bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.negotiations.WithLabelValues(kind.String(), result).Inc()
	if !shouldReply {
		m.noReply.Inc()
	}
}

func (m *Metrics) activation(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.activations.WithLabelValues(result).Inc()
}

func (m *Metrics) establishment(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = ErrorCodeOf(err).String()
	}
	m.establishments.WithLabelValues(result).Inc()
}

func (m *Metrics) rewrite() {
	if m == nil {
		return
	}
	m.rewrites.Inc()
}

func (m *Metrics) multipart() {
	if m == nil {
		return
	}
	m.multipartBodies.Inc()
}

func (m *Metrics) transition(from, to string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(from, to).Inc()
}
