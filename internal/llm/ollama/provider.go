package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/smart-chat/internal/llm"
)

// Provider implements llm.Provider for Ollama. Replies stream as
// newline-delimited JSON.
type Provider struct {
	host         string
	defaultModel string
	client       *http.Client
}

// NewProvider creates a new Ollama provider
func NewProvider(host, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "llama3"
	}
	return &Provider{
		host:         strings.TrimRight(host, "/"),
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 300 * time.Second},
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "ollama"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"llama3",
		"llama3.1",
		"llama3.2",
		"mistral",
		"mixtral",
		"phi3",
		"qwen2",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if a host is set
func (p *Provider) IsConfigured() bool {
	return p.host != ""
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []llm.Turn     `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Complete returns the full reply
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := p.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if ollamaResp.Error != "" {
		return "", fmt.Errorf("ollama: %s", ollamaResp.Error)
	}
	return ollamaResp.Message.Content, nil
}

// Stream returns the reply chunk by chunk
func (p *Provider) Stream(ctx context.Context, req llm.Request) (llm.ChunkStream, error) {
	resp, err := p.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return llm.NewLineStream(resp.Body, decodeLine), nil
}

func decodeLine(line []byte) (string, bool, error) {
	var chunk ollamaResponse
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", false, fmt.Errorf("failed to decode stream chunk: %w", err)
	}
	if chunk.Error != "" {
		return "", false, fmt.Errorf("ollama: %s", chunk.Error)
	}
	return chunk.Message.Content, chunk.Done, nil
}

// options maps generation parameters to Ollama option names
func options(o llm.Options) map[string]any {
	opts := map[string]any{}
	if o.MaxTokens != nil {
		opts["num_predict"] = *o.MaxTokens
	}
	if o.Temperature != nil {
		opts["temperature"] = *o.Temperature
	}
	if o.TopP != nil {
		opts["top_p"] = *o.TopP
	}
	if o.PresencePenalty != nil {
		opts["presence_penalty"] = *o.PresencePenalty
	}
	if o.FrequencyPenalty != nil {
		opts["frequency_penalty"] = *o.FrequencyPenalty
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (p *Provider) do(ctx context.Context, req llm.Request, stream bool) (*http.Response, error) {
	if !p.IsConfigured() {
		return nil, llm.ErrNotConfigured
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body, err := json.Marshal(ollamaRequest{
		Model:    model,
		Messages: req.Turns,
		Stream:   stream,
		Options:  options(req.Options),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.UnreachableError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, llm.NewStatusError(p.Name(), resp)
	}
	return resp, nil
}
