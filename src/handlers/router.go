package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/capitolwatch/backend/src/security"
)

// NewRouter mounts the collection API. Extra middlewares run after the
// request logger.
func NewRouter(h *CollectionHandler, auth *security.AuthService, adminSubjects []string, extra ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(extra...)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)

		r.Group(func(r chi.Router) {
			r.Use(AdminMiddleware(auth, adminSubjects))
			r.Post("/collect", h.HandleTriggerCollection)
			r.Get("/collect/runs", h.HandleListRuns)
			r.Get("/collect/runs/latest", h.HandleLatestRun)
		})
	})
	return r
}
