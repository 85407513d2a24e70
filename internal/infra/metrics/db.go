package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbPoolEmptyAcquires) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Ledger database pool connections by state.",
		},
		[]string{"state"}, // total, idle, in_use, max
	)

	// Cumulative as reported by the pool.
	dbPoolEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_empty_acquires",
			Help: "Acquires that had to wait because every ledger connection was busy.",
		},
	)
)

// PoolStat is the part of a pgxpool.Stat the ledger reports.
type PoolStat interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
	MaxConns() int32
	EmptyAcquireCount() int64
}

func ObserveDBPool(s PoolStat) {
	dbPoolConns.WithLabelValues("total").Set(float64(s.TotalConns()))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.IdleConns()))
	dbPoolConns.WithLabelValues("in_use").Set(float64(s.AcquiredConns()))
	dbPoolConns.WithLabelValues("max").Set(float64(s.MaxConns()))
	dbPoolEmptyAcquires.Set(float64(s.EmptyAcquireCount()))
}
