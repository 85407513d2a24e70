package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every series the service exports.
const Namespace = "monetize"

var (
	once     sync.Once
	pending  []prometheus.Collector
	registry = prometheus.NewRegistry()
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister puts the ledger collectors under Namespace on the service
// registry, next to the Go runtime and process collectors. Safe to call twice.
func MustRegister() {
	once.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prometheus.WrapRegistererWithPrefix(Namespace+"_", registry).MustRegister(pending...)
	})
}

// Handler serves the service registry for scraping.
func Handler() http.Handler {
	MustRegister()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
