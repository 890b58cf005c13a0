package metrics

import (
	"github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// TopicStatusChanged is published on the session bus with
// (instanceID, from, to string) arguments.
const TopicStatusChanged = "session:status"

const namespace = "wagate"

var (
	Sessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "current",
		Help:      "Live sessions by status.",
	}, []string{"status"})

	SessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Session status transitions by target status.",
	}, []string{"status"})

	Reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "reconnects_scheduled_total",
		Help:      "Reconnects scheduled by close reason.",
	}, []string{"reason"})

	MessagesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "messages_total",
		Help:      "Inbound messages processed by outcome.",
	}, []string{"outcome"})

	WebhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries by event kind and outcome.",
	}, []string{"event", "outcome"})

	// Host gauges are refreshed by a scheduled sampler.
	Host = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "usage",
		Help:      "Host and process resource usage (cpu in percent, memory in MiB).",
	}, []string{"scope", "resource"})
)

func init() {
	prometheus.MustRegister(Sessions, SessionTransitions, Reconnects, MessagesIngested, WebhookDeliveries, Host)
}

// SubscribeStatus keeps the session gauges in step with transitions
// published on bus.
func SubscribeStatus(bus EventBus.Bus) error {
	return bus.SubscribeAsync(TopicStatusChanged, func(instanceID, from, to string) {
		if from != "" {
			Sessions.WithLabelValues(from).Dec()
		}
		if to != "" {
			Sessions.WithLabelValues(to).Inc()
			SessionTransitions.WithLabelValues(to).Inc()
		}
		zap.L().Debug("metrics: session status changed",
			zap.String("instance_id", instanceID),
			zap.String("from", from),
			zap.String("to", to))
	}, true)
}

// ResetSessions overwrites the session gauges with an authoritative count.
func ResetSessions(counts map[string]int) {
	Sessions.Reset()
	for status, n := range counts {
		Sessions.WithLabelValues(status).Set(float64(n))
	}
}
