package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerCallDuration) }

var providerCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Latency of outbound payment provider calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	},
	[]string{"provider", "op", "success"},
)

// ObserveProviderCall records a provider round trip started at start.
func ObserveProviderCall(provider, op string, start time.Time, err error) {
	providerCallDuration.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(err == nil)).
		Observe(time.Since(start).Seconds())
}
