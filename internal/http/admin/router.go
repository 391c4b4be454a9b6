package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig reúne lo que el router necesita además de los handlers.
type RouterConfig struct {
	APIKey string
	// Registry para /metrics. nil = registry global de prometheus.
	Registry *prometheus.Registry
	// Ready reporta la salud de las dependencias (backend de revocación,
	// store de secretos). Se usa en /healthz.
	Ready func(r *http.Request) error
}

// NewRouter arma el router completo de la superficie admin.
//
// Superficie:
//
//	GET  /healthz
//	GET  /metrics
//	POST /v1/admin/revocations
//	GET  /v1/admin/users/{userID}/revocations
//	POST /v1/admin/secrets/{name}/rotate
//	PUT  /v1/admin/secrets/{name}
//	GET  /v1/admin/secrets/{name}/history
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID, withLogging)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(req); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"detail": err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(requireAPIKey(cfg.APIKey))

		r.Post("/revocations", h.Revoke)
		r.Get("/users/{userID}/revocations", h.ListRevocations)

		r.Post("/secrets/{name}/rotate", h.RotateSecret)
		r.Put("/secrets/{name}", h.SetSecret)
		r.Get("/secrets/{name}/history", h.SecretHistory)
	})

	return r
}
