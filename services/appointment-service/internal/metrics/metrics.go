// Package metrics exposes Prometheus counters for the appointment lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	notifications *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	inboundSms    *prometheus.CounterVec
	reminders     prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homelube_notifications_total",
			Help: "Outbound notifications by channel, kind and result.",
		}, []string{"channel", "kind", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homelube_lifecycle_transitions_total",
			Help: "Persisted appointment state transitions.",
		}, []string{"transition"}),
		inboundSms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homelube_inbound_sms_total",
			Help: "Inbound SMS replies by outcome.",
		}, []string{"outcome"}),
		reminders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homelube_reminders_sent_total",
			Help: "Reminder SMS messages delivered.",
		}),
	}

	reg.MustRegister(
		c.notifications,
		c.transitions,
		c.inboundSms,
		c.reminders,
	)
	return c
}

func (c *Collector) RecordNotification(channel, kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.notifications.WithLabelValues(channel, kind, result).Inc()
}

func (c *Collector) RecordTransition(name string) {
	c.transitions.WithLabelValues(name).Inc()
}

func (c *Collector) RecordInboundSms(outcome string) {
	c.inboundSms.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordReminderSent() {
	c.reminders.Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
