// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/azera-ai/azera/config"
	"github.com/azera-ai/azera/pkg/api/handlers"
	"github.com/azera-ai/azera/pkg/api/middleware"
	"github.com/azera-ai/azera/pkg/logger"
)

// wsChatPath is exempt from the request timeout: streaming sessions stay
// open far longer than any request deadline.
const wsChatPath = "/ws/chat/"

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Persona handles persona CRUD endpoints
	Persona *handlers.PersonaHandler

	// Chat handles chat threads, exchanges, and streaming
	Chat *handlers.ChatHandler

	// Memory handles memory store and recall endpoints
	Memory *handlers.MemoryHandler

	// State handles mental state and signal endpoints
	State *handlers.StateHandler

	// Models handles model discovery endpoints
	Models *handlers.ModelsHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout, wsChatPath))

	if cfg.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
		r.Use(middleware.RateLimit(limiter))
	}

	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Persona != nil {
			r.Route("/personas", func(r chi.Router) {
				r.Post("/", handlers.Persona.Create)
				r.Get("/", handlers.Persona.List)
				r.Get("/{personaID}", handlers.Persona.Get)
				r.Put("/{personaID}", handlers.Persona.Update)
				r.Delete("/{personaID}", handlers.Persona.Delete)

				if handlers.Chat != nil {
					r.Get("/{personaID}/chats", handlers.Chat.List)
				}
				if handlers.Memory != nil {
					r.Post("/{personaID}/memories", handlers.Memory.Store)
					r.Get("/{personaID}/memories/search", handlers.Memory.Search)
				}
				if handlers.State != nil {
					r.Get("/{personaID}/state", handlers.State.Get)
					r.Post("/{personaID}/signal", handlers.State.Signal)
				}
			})
		}

		if handlers.Chat != nil {
			r.Route("/chats", func(r chi.Router) {
				r.Post("/", handlers.Chat.Create)
				r.Get("/{chatID}", handlers.Chat.Get)
				r.Delete("/{chatID}", handlers.Chat.Delete)
				r.Get("/{chatID}/messages", handlers.Chat.Messages)
				r.Post("/{chatID}/messages", handlers.Chat.Send)
			})
		}

		if handlers.Models != nil {
			r.Get("/models", handlers.Models.List)
		}
	})

	// Streaming endpoint, outside the versioned tree
	if handlers.Chat != nil {
		r.Get("/ws/chat/{chatID}", handlers.Chat.Stream)
	}

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/version", handlers.Health.Version)
	}
}
