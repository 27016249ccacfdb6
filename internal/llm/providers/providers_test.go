package providers

import (
	"testing"

	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/Rrens/smart-chat/internal/llm/httpchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouter(t *testing.T) {
	router := NewRouter(config.LLMConfig{
		DefaultProvider: "azure",
		OpenAI:          config.OpenAIConfig{APIKey: "sk-test"},
		Ollama:          config.OllamaConfig{Host: "http://localhost:11434", DefaultModel: "llama3"},
	})

	assert.Equal(t, []string{"ollama", "openai"}, router.ListProviders())

	_, err := router.GetProvider("")
	assert.ErrorIs(t, err, llm.ErrNotConfigured, "azure without credentials")

	p, err := router.GetProvider("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewClient(t *testing.T) {
	t.Run("backend url", func(t *testing.T) {
		cfg := &config.Config{Chat: config.ChatConfig{BackendURL: "http://localhost:3000/api/chat"}}
		client := NewClient(cfg, NewRouter(cfg.LLM))
		assert.IsType(t, &httpchat.Client{}, client)
	})

	t.Run("unconfigured", func(t *testing.T) {
		cfg := &config.Config{LLM: config.LLMConfig{DefaultProvider: "azure"}}
		client := NewClient(cfg, NewRouter(cfg.LLM))
		assert.Equal(t, llm.Unavailable{}, client)
	})

	t.Run("streaming provider stays streaming", func(t *testing.T) {
		cfg := &config.Config{LLM: config.LLMConfig{
			DefaultProvider: "ollama",
			Ollama:          config.OllamaConfig{Host: "http://localhost:11434"},
		}}
		client := NewClient(cfg, NewRouter(cfg.LLM))
		_, streaming := client.(llm.StreamingClient)
		assert.True(t, streaming)
	})
}
