package metrics

import (
	"saas-billing/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(subscriptionTransitionsTotal) }

var subscriptionTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Subscriptions moved into a status (active on activation, cancelled on cancel or refund).",
	},
	[]string{"status"},
)

func IncSubscriptionTransition(status model.SubscriptionStatus) {
	subscriptionTransitionsTotal.WithLabelValues(norm(string(status))).Inc()
}
