package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiraleos/chatterd/internal/ratelimit"
)

func NewRouter(apiHandler *APIHandler, limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		// Rate-limited public routes
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(limiter))

			r.Post("/auth/register", apiHandler.RegisterHandler)
			r.Post("/auth/login", apiHandler.LoginHandler)

			// Chat works with or without a token; anonymous callers just
			// get no memory rules.
			r.With(apiHandler.OptionalAuth).Post("/chat", apiHandler.ChatHandler)
		})

		// Token-required routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.RequireAuth)

			r.Post("/tool/{kind}", apiHandler.ToolHandler)
			r.Get("/messages", apiHandler.ListMessagesHandler)

			r.Post("/memory", apiHandler.SetMemoryHandler)
			r.Get("/memory/{key}", apiHandler.GetMemoryHandler)
			r.Post("/memory/clear", apiHandler.ClearMemoryHandler)
		})
	})

	return r
}
