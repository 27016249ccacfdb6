package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Rrens/smart-chat/internal/api/response"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/rs/zerolog/log"
)

const notConfiguredText = "Completion service not configured. Set AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, and AZURE_OPENAI_DEPLOYMENT."

// ProviderSource resolves the provider that serves proxy requests
type ProviderSource interface {
	GetProvider(name string) (llm.Provider, error)
}

// ProxyHandler serves POST /api/chat: a conversation in, plain reply text
// out. Errors are plain text as well.
type ProxyHandler struct {
	providers    ProviderSource
	systemPrompt string
	options      llm.Options
}

func NewProxyHandler(providers ProviderSource, systemPrompt string, options llm.Options) *ProxyHandler {
	return &ProxyHandler{
		providers:    providers,
		systemPrompt: systemPrompt,
		options:      options,
	}
}

type chatRequest struct {
	Messages []llm.Turn `json:"messages"`
}

// Chat proxies one completion. Streaming providers are relayed chunk by
// chunk.
func (h *ProxyHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var input chatRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.Text(w, http.StatusBadRequest, "invalid request body")
		return
	}

	provider, err := h.providers.GetProvider("")
	if err != nil {
		log.Warn().Err(err).Msg("[api/chat] completion service not configured")
		response.Text(w, http.StatusInternalServerError, notConfiguredText)
		return
	}

	client := llm.WithSystemPrompt(provider, h.systemPrompt)
	req := llm.Request{Turns: input.Messages, Options: h.options}

	log.Info().Str("provider", provider.Name()).Int("messages", len(input.Messages)).Msg("[api/chat] proxying")

	if sc, ok := client.(llm.StreamingClient); ok {
		h.relay(w, r, provider.Name(), sc, req)
		return
	}

	reply, err := client.Complete(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, provider.Name(), err)
		return
	}
	if reply == "" {
		reply = "(no content)"
	}
	response.Text(w, http.StatusOK, reply)
}

func (h *ProxyHandler) relay(w http.ResponseWriter, r *http.Request, name string, sc llm.StreamingClient, req llm.Request) {
	stream, err := sc.Stream(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, name, err)
		return
	}
	defer stream.Close()

	// The status line waits for the first chunk so early upstream failures
	// still map to an error status
	first, err := stream.Recv()
	if err != nil && !errors.Is(err, io.EOF) {
		writeUpstreamError(w, name, err)
		return
	}
	if errors.Is(err, io.EOF) {
		response.Text(w, http.StatusOK, "(no content)")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	chunk := first
	for {
		if _, err := io.WriteString(w, chunk); err != nil {
			log.Debug().Err(err).Msg("[api/chat] client went away")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}

		chunk, err = stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("provider", name).Msg("[api/chat] stream interrupted")
			return
		}
	}
}

func writeUpstreamError(w http.ResponseWriter, provider string, err error) {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		log.Error().Str("provider", provider).Int("status", statusErr.StatusCode).Str("body", statusErr.Body).
			Msg("[api/chat] upstream error")
		response.Text(w, statusErr.StatusCode, fmt.Sprintf("%s error: %s", provider, statusErr.Body))
		return
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		response.Text(w, http.StatusInternalServerError, notConfiguredText)
		return
	}

	log.Error().Err(err).Str("provider", provider).Msg("[api/chat] server error")
	response.Text(w, http.StatusInternalServerError, "Server error: "+err.Error())
}
