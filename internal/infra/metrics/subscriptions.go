package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		transitionsTotal,
		subscriptionsDue,
	)
}

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_transitions_total",
			Help: "Billing entry point calls by operation and result (ok or error kind).",
		},
		[]string{"operation", "result"}, // e.g. operation="subscribe", result="conflict"
	)

	subscriptionsDue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriptions_due",
			Help: "Active, unpaused subscriptions whose payment was due at the last scan.",
		},
	)
)

func IncTransition(operation, kind string, err error) {
	transitionsTotal.WithLabelValues(norm(operation), result(kind, err)).Inc()
}

func SetSubscriptionsDue(count int) {
	subscriptionsDue.Set(float64(count))
}
