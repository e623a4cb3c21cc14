// Package metrics exposes the Prometheus instruments for the conversation
// engine and the outbound channel. All methods are nil-safe so tests can pass
// a nil receiver and skip registration entirely.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agendabot"

// Turn outcomes.
const (
	OutcomeWelcome  = "welcome"
	OutcomeAnswered = "answered"
	OutcomeLLMError = "llm_error"
	OutcomeError    = "error"
	OutcomeHopLimit = "hop_limit"
)

// ConversationMetrics counts turns, dispatched actions and planner calls.
type ConversationMetrics struct {
	turnsTotal   *prometheus.CounterVec
	actionsTotal *prometheus.CounterVec
	llmCalls     *prometheus.CounterVec
	turnDuration prometheus.Histogram
}

// NewConversationMetrics registers the conversation instruments on reg.
func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions by name and status.",
		}, []string{"action", "status"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Planner round-trips by status.",
		}, []string{"status"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a full conversation turn.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.turnsTotal, m.actionsTotal, m.llmCalls, m.turnDuration)
	}
	return m
}

func (m *ConversationMetrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(seconds)
}

func (m *ConversationMetrics) ObserveAction(action string, success bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "failed"
	}
	m.actionsTotal.WithLabelValues(action, status).Inc()
}

func (m *ConversationMetrics) ObserveLLMCall(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmCalls.WithLabelValues(status).Inc()
}

// OutboundMetrics counts WhatsApp deliveries and retries.
type OutboundMetrics struct {
	sendsTotal   *prometheus.CounterVec
	sendAttempts prometheus.Counter
}

// NewOutboundMetrics registers the outbound instruments on reg.
func NewOutboundMetrics(reg prometheus.Registerer) *OutboundMetrics {
	m := &OutboundMetrics{
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_sends_total",
			Help:      "Outbound messages by final status.",
		}, []string{"status"}),
		sendAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_send_attempts_total",
			Help:      "Individual delivery attempts including retries.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sendsTotal, m.sendAttempts)
	}
	return m
}

func (m *OutboundMetrics) ObserveAttempt() {
	if m == nil {
		return
	}
	m.sendAttempts.Inc()
}

func (m *OutboundMetrics) ObserveSend(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.sendsTotal.WithLabelValues(status).Inc()
}
