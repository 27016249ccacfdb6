// Package providers wires configured completion backends into an llm.Router.
package providers

import (
	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/Rrens/smart-chat/internal/llm/anthropic"
	"github.com/Rrens/smart-chat/internal/llm/azure"
	"github.com/Rrens/smart-chat/internal/llm/deepseek"
	"github.com/Rrens/smart-chat/internal/llm/gemini"
	"github.com/Rrens/smart-chat/internal/llm/httpchat"
	"github.com/Rrens/smart-chat/internal/llm/ollama"
	"github.com/Rrens/smart-chat/internal/llm/openai"
	"github.com/rs/zerolog/log"
)

// NewRouter registers Azure OpenAI unconditionally, so an incomplete setup
// surfaces as ErrNotConfigured, and every other provider whose credentials
// are present.
func NewRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	router.RegisterProvider(azure.NewProvider(cfg.Azure.Endpoint, cfg.Azure.APIKey, cfg.Azure.Deployment, cfg.Azure.APIVersion))

	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		router.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}
	if cfg.OpenAI.APIKey != "" {
		router.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
	}
	if cfg.Anthropic.APIKey != "" {
		router.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model))
	}
	if cfg.Gemini.APIKey != "" {
		router.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	}

	return router
}

// NewClient returns the completion client the conversation controller
// uses. A configured chat backend URL wins over in-process providers.
// Without either the controller falls back to local replies.
func NewClient(cfg *config.Config, router *llm.Router) llm.Client {
	if cfg.Chat.BackendURL != "" {
		log.Info().Str("url", cfg.Chat.BackendURL).Msg("using remote chat backend")
		return httpchat.NewClient(cfg.Chat.BackendURL, nil)
	}

	provider, err := router.GetProvider("")
	if err != nil {
		log.Warn().Err(err).Msg("no completion provider configured, replies will be local")
		return llm.Unavailable{}
	}

	log.Info().Str("provider", provider.Name()).Msg("using completion provider")
	return llm.WithSystemPrompt(provider, cfg.LLM.SystemPrompt)
}
