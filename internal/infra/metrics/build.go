package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(buildInfo, providersConfigured)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Constant 1, labeled with the build version, commit and Go runtime.",
		},
		[]string{"version", "commit", "goversion"},
	)

	providersConfigured = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "providers_configured",
			Help: "Constant 1 for each payment provider registered at startup.",
		},
		[]string{"provider"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

// SetProvidersConfigured replaces the registered provider set.
func SetProvidersConfigured(keys ...string) {
	providersConfigured.Reset()
	for _, k := range keys {
		providersConfigured.WithLabelValues(norm(k)).Set(1)
	}
}
