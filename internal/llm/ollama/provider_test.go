package ollama

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

func TestProvider_Stream(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"message":{"content":"Hel"},"done":false}
{"message":{"content":"lo"},"done":false}
{"message":{"content":""},"done":true}
`))
	}))
	defer srv.Close()

	maxTokens := 32
	p := NewProvider(srv.URL+"/", "")
	stream, err := p.Stream(context.Background(), llm.Request{
		Turns:   []llm.Turn{{Role: "user", Content: "hi"}},
		Options: llm.Options{MaxTokens: &maxTokens},
	})
	require.NoError(t, err)

	reply, err := llm.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply)
	assert.Equal(t, "llama3", got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, float64(32), got.Options["num_predict"])
}

func TestProvider_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not found"}` + "\n"))
	}))
	defer srv.Close()

	stream, err := NewProvider(srv.URL, "missing").Stream(context.Background(), llm.Request{})
	require.NoError(t, err)

	_, err = llm.Collect(stream)
	assert.EqualError(t, err, "ollama: model not found")
}

func TestOptions(t *testing.T) {
	assert.Nil(t, options(llm.Options{}))

	temp, topP := 0.7, 0.9
	assert.Equal(t, map[string]any{"temperature": 0.7, "top_p": 0.9}, options(llm.Options{Temperature: &temp, TopP: &topP}))
}
