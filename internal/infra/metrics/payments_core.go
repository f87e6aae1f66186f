package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		withdrawalsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Recurring payments by result (ok or error kind).",
		},
		[]string{"result"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Smallest currency units moved into provider vaults, labeled by mint.",
		},
		[]string{"mint"},
	)

	withdrawalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_withdrawals_total",
			Help: "Provider withdrawals from plan vaults by result.",
		},
		[]string{"result"},
	)
)

func IncPayment(kind string, err error) {
	paymentsTotal.WithLabelValues(result(kind, err)).Inc()
}

func AddPaymentRevenue(mint string, amount uint64) {
	paymentsRevenueTotal.WithLabelValues(mint).Add(float64(amount))
}

func IncWithdrawal(kind string, err error) {
	withdrawalsTotal.WithLabelValues(result(kind, err)).Inc()
}
