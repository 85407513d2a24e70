package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhooksTotal) }

// result: applied|noop|ignored|unknown_ref|invalid_signature|error
var webhooksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhooks_total",
		Help: "Inbound provider webhooks by provider and handling result.",
	},
	[]string{"provider", "result"},
)

func IncWebhook(provider, result string) {
	webhooksTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}
