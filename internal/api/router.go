package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lyricwatch/lyricwatch/internal/api/middleware"
)

// NewRouter assembles the API routes. Reads are open; everything that
// mutates queue state sits behind JWT authentication.
func NewRouter(jobHandler *JobHandler, authMiddleware *middleware.AuthMiddleware) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/jobs/{id}/progress", jobHandler.GetJobProgress)
		r.Get("/queue/health", jobHandler.GetQueueHealth)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/jobs", jobHandler.CreateJob)
			r.Delete("/jobs/{id}", jobHandler.CancelJob)
		})
	})

	return r
}
