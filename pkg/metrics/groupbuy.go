package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Email delivery outcomes.
const (
	EmailOutcomeSent      = "sent"
	EmailOutcomeFailed    = "failed"
	EmailOutcomeRetried   = "retried"
	EmailOutcomeDelivered = "delivered"
)

// Join results.
const (
	JoinAccepted = "accepted"
	JoinRejected = "rejected"
)

// GroupBuyMetrics tracks ledger and notification fan-out activity.
type GroupBuyMetrics struct {
	joins              *prometheus.CounterVec
	thresholdCrossings prometheus.Counter
	transitions        *prometheus.CounterVec
	fanOutRecipients   *prometheus.CounterVec
	emailDeliveries    *prometheus.CounterVec
	exhaustedEmails    prometheus.Gauge
}

// NewGroupBuyMetrics registers the domain metrics on the provided registerer.
func NewGroupBuyMetrics(reg prometheus.Registerer) *GroupBuyMetrics {
	if reg == nil {
		return &GroupBuyMetrics{}
	}
	m := &GroupBuyMetrics{
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_ledger_joins_total",
			Help: "Join attempts against group order ledgers by result.",
		}, []string{"result"}),
		thresholdCrossings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "groupbuy_threshold_crossings_total",
			Help: "Group orders that crossed their minimum threshold.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_status_transitions_total",
			Help: "Committed group order status transitions.",
		}, []string{"to"}),
		fanOutRecipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_fanout_recipients_total",
			Help: "Notification fan-out recipients by event and outcome.",
		}, []string{"event", "outcome"}),
		emailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_email_deliveries_total",
			Help: "Email delivery attempts by outcome.",
		}, []string{"outcome"}),
		exhaustedEmails: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "groupbuy_email_deliveries_exhausted",
			Help: "Failed email deliveries that have used every retry.",
		}),
	}
	reg.MustRegister(m.joins, m.thresholdCrossings, m.transitions, m.fanOutRecipients, m.emailDeliveries, m.exhaustedEmails)
	return m
}

func (m *GroupBuyMetrics) IncJoin(result string) {
	if m == nil || m.joins == nil {
		return
	}
	m.joins.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *GroupBuyMetrics) IncThresholdCrossing() {
	if m == nil || m.thresholdCrossings == nil {
		return
	}
	m.thresholdCrossings.Inc()
}

func (m *GroupBuyMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// ObserveFanOut records one recipient outcome; ok=false covers render and transport failures.
func (m *GroupBuyMetrics) ObserveFanOut(event string, ok bool) {
	if m == nil || m.fanOutRecipients == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.fanOutRecipients.WithLabelValues(normalizeLabel(event), outcome).Inc()
}

func (m *GroupBuyMetrics) IncEmail(outcome string) {
	if m == nil || m.emailDeliveries == nil {
		return
	}
	m.emailDeliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetExhaustedEmails publishes the current count of permanently failed deliveries.
func (m *GroupBuyMetrics) SetExhaustedEmails(count int64) {
	if m == nil || m.exhaustedEmails == nil {
		return
	}
	m.exhaustedEmails.Set(float64(count))
}
