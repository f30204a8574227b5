package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mount registers every route on r. Probes and /metrics stay outside
// authentication; everything under /v1 requires the bearer secret.
func (s *Server) Mount(r chi.Router, apiKey string) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.Healthz)
	r.Get("/readyz", s.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiKey))

		r.Route("/vector/{collection}", func(r chi.Router) {
			r.Put("/", s.withTenant(s.EnsureCollection))
			r.Get("/", s.withTenant(s.DescribeCollection))
			r.Delete("/", s.withTenant(s.DeleteVectors))
			r.Post("/upsert", s.withTenant(s.Upsert))
			r.Post("/query", s.withTenant(s.Query))
		})

		r.Post("/chat/{thread_id}/messages", s.withTenant(s.AppendMessage))
		r.Get("/chat/{thread_id}/messages", s.withTenant(s.ListMessages))

		r.Route("/graph", func(r chi.Router) {
			r.Post("/entities", s.withTenant(s.UpsertEntity))
			r.Delete("/entities/{id}", s.withTenant(s.DeleteEntity))
			r.Post("/relations", s.withTenant(s.CreateRelation))
			r.Delete("/relations", s.withTenant(s.DeleteRelation))
			r.Get("/neighbors/{id}", s.withTenant(s.Neighbors))
		})
	})
}

// NewRouter builds a router with s mounted and the given middleware applied
// in order.
func NewRouter(s *Server, apiKey string, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	s.Mount(r, apiKey)
	return r
}
