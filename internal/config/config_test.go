package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "smartchat:", cfg.Store.KeyPrefix)
	assert.Equal(t, "azure", cfg.LLM.DefaultProvider)
	assert.Equal(t, llm.DefaultSystemPrompt, cfg.LLM.SystemPrompt)
	assert.Equal(t, "2024-06-01", cfg.LLM.Azure.APIVersion)
	assert.Equal(t, llm.Options{}, cfg.LLM.Generation)
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
store:
  driver: memory
  key_prefix: "demo:"
chat:
  backend_url: http://localhost:3000/api/chat
  typing_delay: 300ms
llm:
  generation:
    max_tokens: 512
    temperature: 0.3
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "demo:", cfg.Store.KeyPrefix)
	assert.Equal(t, "http://localhost:3000/api/chat", cfg.Chat.BackendURL)
	assert.Equal(t, 300*time.Millisecond, cfg.Chat.TypingDelay)

	require.NotNil(t, cfg.LLM.Generation.MaxTokens)
	assert.Equal(t, 512, *cfg.LLM.Generation.MaxTokens)
	require.NotNil(t, cfg.LLM.Generation.Temperature)
	assert.Equal(t, 0.3, *cfg.LLM.Generation.Temperature)
	assert.Nil(t, cfg.LLM.Generation.TopP)
}

func TestLoadFile_Environment(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")
	t.Setenv("AZURE_OPENAI_SYSTEM_PROMPT", "Be terse.")
	t.Setenv("AZURE_OPENAI_MAX_TOKENS", "200")
	t.Setenv("AZURE_OPENAI_MAX_COMPLETION_TOKENS", "100")
	t.Setenv("AZURE_OPENAI_TEMPERATURE", "0.5")
	t.Setenv("AZURE_OPENAI_TOP_P", "not a number")
	t.Setenv("AZURE_OPENAI_PRESENCE_PENALTY", "  ")
	t.Setenv("PORT", "9090")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://example.openai.azure.com", cfg.LLM.Azure.Endpoint)
	assert.Equal(t, "key", cfg.LLM.Azure.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Azure.Deployment)
	assert.Equal(t, "Be terse.", cfg.LLM.SystemPrompt)

	gen := cfg.LLM.Generation
	require.NotNil(t, gen.MaxTokens)
	assert.Equal(t, 100, *gen.MaxTokens, "max completion tokens wins over max tokens")
	require.NotNil(t, gen.Temperature)
	assert.Equal(t, 0.5, *gen.Temperature)
	assert.Nil(t, gen.TopP, "malformed values are ignored")
	assert.Nil(t, gen.PresencePenalty, "blank values are ignored")
	assert.Nil(t, gen.FrequencyPenalty)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown store driver", content: "store:\n  driver: cassandra\n"},
		{name: "bad backend url", content: "chat:\n  backend_url: not a url\n"},
		{name: "bad log level", content: "logging:\n  level: loud\n"},
		{name: "malformed yaml", content: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDSNs(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "chat", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/chat?sslmode=disable", db.DSN())
	assert.Equal(t, "", db.MigrationsSource())

	db.MigrationsPath = "migrations"
	assert.Equal(t, "file://migrations", db.MigrationsSource())

	assert.Equal(t, "cache:6379", RedisConfig{Host: "cache", Port: 6379}.Addr())
}
