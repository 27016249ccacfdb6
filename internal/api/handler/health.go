package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Rrens/smart-chat/internal/api/response"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/rs/zerolog/log"
)

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness answers 503 while the session store is unreachable. A nil
// pinger is always ready.
func Readiness(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := p.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("store is not ready")
				response.Error(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		response.OK(w, map[string]string{"status": "ready"})
	}
}

// ListLLMProviders returns registered completion providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        router.GetProvidersInfo(),
			"default_provider": router.DefaultProvider(),
		})
	}
}
