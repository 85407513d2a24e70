package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(payoutsTotal) }

var payoutsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payouts_total",
		Help: "Payout transitions by mode and resulting status.",
	},
	[]string{"mode", "status"}, // status: pending|processing|completed|failed|rejected|insufficient
)

func IncPayout(mode, status string) {
	payoutsTotal.WithLabelValues(norm(mode), norm(status)).Inc()
}
