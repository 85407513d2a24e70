package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheLookupsTotal, cacheErrorsTotal) }

var (
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Creator profile and bank directory cache lookups by result.",
		},
		[]string{"cache", "result"}, // cache="user" or "banks:<provider>"
	)

	cacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Cache backend failures that fell through to the source of truth.",
		},
		[]string{"cache", "op"},
	)
)

func ObserveCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(norm(cache), result).Inc()
}

func IncCacheError(cache, op string) {
	cacheErrorsTotal.WithLabelValues(norm(cache), norm(op)).Inc()
}
