package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"video-monetization/internal/infra/api/apiv1"
	"video-monetization/internal/infra/metrics"
)

// Pinger reports whether a backing store is reachable.
type Pinger func() error

// NewRouter assembles the HTTP surface: middleware chain, health and metrics
// endpoints, and the v1 API.
func NewRouter(v1 *apiv1.Server, requestTimeout time.Duration, logger *zerolog.Logger, checks map[string]Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(logger), RequestLog(logger))
	if requestTimeout > 0 {
		r.Use(Timeout(requestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		for name, ping := range checks {
			if err := ping(); err != nil {
				logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	apiv1.RegisterAPIV1(r, v1)
	return r
}
