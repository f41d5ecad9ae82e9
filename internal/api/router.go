package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-ledger/internal/api/handlers"
	"github.com/dvloznov/invoice-ledger/internal/api/middleware"
)

// NewRouter builds the HTTP surface. timeout bounds each request; zero
// disables it.
func NewRouter(
	attachments *handlers.AttachmentsHandler,
	jobsHandler *handlers.JobsHandler,
	runs *handlers.RunsHandler,
	timeout time.Duration,
	log zerolog.Logger,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         3600,
	}))
	if timeout > 0 {
		router.Use(chimw.Timeout(timeout))
	}

	router.Get("/health", handlers.Health)

	router.Route("/api", func(r chi.Router) {
		r.Route("/attachments", attachments.Routes)
		r.Route("/jobs", jobsHandler.Routes)
		r.Route("/runs", runs.Routes)
	})

	return router
}
