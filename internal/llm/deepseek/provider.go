package deepseek

import (
	"github.com/Rrens/smart-chat/internal/llm/openai"
)

const baseURL = "https://api.deepseek.com/v1"

// NewProvider creates a DeepSeek provider. DeepSeek speaks the OpenAI chat
// completions protocol, streaming included.
func NewProvider(apiKey, defaultModel string) *openai.Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return openai.NewCompatible("deepseek", baseURL, apiKey, defaultModel,
		[]string{"deepseek-chat", "deepseek-reasoner"})
}
