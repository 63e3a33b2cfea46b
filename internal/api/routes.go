package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/campaign-dispatch/internal/metrics"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", h.ListContacts)
		r.Post("/import", h.ImportContacts)
		r.Post("/bounces/sync", h.SyncBounces)

		r.Get("/batches", h.ListBatches)
		r.Get("/batches/{batchID}", h.BatchContacts)
		r.Post("/batches/{batchID}/activate", h.ActivateBatch)
		r.Post("/batches/{batchID}/deactivate", h.DeactivateBatch)

		r.Get("/{id}", h.GetContact)
		r.Put("/{id}/status", h.UpdateContactStatus)
		r.Delete("/{id}", h.DeleteContact)
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.ListCampaigns)
		r.Post("/", h.CreateCampaign)
		r.Get("/{id}", h.GetCampaign)
		r.Post("/{id}/send", h.SendCampaign)
		r.Post("/{id}/test", h.TestSend)
		r.Get("/{id}/stats", h.CampaignStats)
	})

	r.Get("/stats/daily", h.DailyStats)
	r.Post("/webhook/{provider}", h.Webhook)

	return r
}
