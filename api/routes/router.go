package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safliix/console-backend/api/controllers"
	"github.com/safliix/console-backend/api/middleware"
	"github.com/safliix/console-backend/pkg/config"
	"github.com/safliix/console-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	journal controllers.Pinger,
	statsService controllers.StatsFetcher,
	publishDeps controllers.PublishDeps,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.BearerToken(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, journal))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/publish/{kind}", func(r chi.Router) {
			r.Post("/", controllers.PublishCreate(publishDeps))
			r.Put("/{id}", controllers.PublishUpdate(publishDeps))
		})
		r.Get("/stats/{kind}/{id}", controllers.TitleStats(statsService, logg))
	})

	return r
}
