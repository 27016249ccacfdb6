package api

import (
	"net/http"

	"github.com/Rrens/smart-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/smart-chat/internal/api/middleware"
	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/Rrens/smart-chat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies are the collaborators the HTTP surface is built on
type Dependencies struct {
	Controller *service.Controller
	Providers  *llm.Router
	// Store backs the readiness probe; nil always reports ready
	Store handler.Pinger
	// Limiter guards the completion proxy; nil disables rate limiting
	Limiter customMiddleware.Limiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.MiddlewareTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	proxyHandler := handler.NewProxyHandler(deps.Providers, cfg.LLM.SystemPrompt, cfg.LLM.Generation)
	sessionHandler := handler.NewSessionHandler(deps.Controller)
	conversationHandler := handler.NewConversationHandler(deps.Controller)

	// Completion proxy
	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
		}
		r.Post("/api/chat", proxyHandler.Chat)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.Readiness(deps.Store))
		r.Get("/llm-providers", handler.ListLLMProviders(deps.Providers))

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.List)
			r.Post("/", sessionHandler.Create)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Patch("/", sessionHandler.Rename)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/select", sessionHandler.Select)
			})
		})

		r.Get("/transcript", conversationHandler.Transcript)
		r.Put("/input", conversationHandler.SetInput)
		r.Post("/messages", conversationHandler.Send)
		r.Post("/cancel", conversationHandler.Cancel)
		r.Post("/reset", conversationHandler.Reset)
		r.Post("/render", handler.Render)
	})

	return r
}
