package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconcileRunsTotal, sideEffectsTotal) }

var (
	reconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_reconcile_total",
			Help: "Stale pending transactions re-verified by the reconciler, labeled by outcome.",
		},
		[]string{"outcome"}, // 'settled', 'still_pending', 'error'
	)

	sideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_side_effects_total",
			Help: "Best-effort post-sale side effects by kind and status.",
		},
		[]string{"kind", "status"}, // kind: sales_counter|notify_creator|notify_buyer; status: ok|error|dropped
	)
)

func IncReconcile(outcome string) {
	reconcileRunsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncSideEffect(kind, status string) {
	sideEffectsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
