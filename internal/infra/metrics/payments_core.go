package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		commissionTotal,
		amountMismatchTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Purchase transactions by provider and status (pending/successful/failed/refunded).",
		},
		[]string{"provider", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Gross minor units of successful purchases, labeled by currency.",
		},
		[]string{"currency"},
	)

	commissionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_total",
			Help: "Platform commission in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	amountMismatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_amount_mismatch_total",
			Help: "Confirmations where the provider amount differed from the stored gross amount.",
		},
		[]string{"provider"},
	)
)

func IncPayment(provider, status string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func AddSettlement(currency string, gross, commission int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(gross))
	commissionTotal.WithLabelValues(norm(currency)).Add(float64(commission))
}

func IncAmountMismatch(provider string) {
	amountMismatchTotal.WithLabelValues(norm(provider)).Inc()
}
