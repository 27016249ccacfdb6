package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hello"},{"type":"text","text":" there"}]}`))
	}))
	defer srv.Close()

	p := NewProvider("key", "")
	p.baseURL = srv.URL
	p.client = srv.Client()

	reply, err := p.Complete(context.Background(), llm.Request{Turns: []llm.Turn{
		{Role: "system", Content: "Be kind."},
		{Role: "user", Content: "hi"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	assert.Equal(t, "Be kind.", got.System, "system turns are lifted out of messages")
	assert.Equal(t, []anthropicMessage{{Role: "user", Content: "hi"}}, got.Messages)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.Equal(t, "claude-3-5-haiku-latest", got.Model)
}

func TestProvider_NotConfigured(t *testing.T) {
	_, err := NewProvider("", "").Complete(context.Background(), llm.Request{})
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}
