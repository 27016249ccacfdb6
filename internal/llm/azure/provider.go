package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rrens/smart-chat/internal/llm"
)

// DefaultAPIVersion is used when no api version is configured
const DefaultAPIVersion = "2024-06-01"

// Provider implements llm.Provider for an Azure OpenAI chat deployment
type Provider struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	client     *http.Client
}

// NewProvider creates a new Azure OpenAI provider
func NewProvider(endpoint, apiKey, deployment, apiVersion string) *Provider {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Provider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		deployment: deployment,
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client, mostly for tests
func (p *Provider) WithHTTPClient(c *http.Client) *Provider {
	p.client = c
	return p
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "azure"
}

// AvailableModels returns the configured deployment
func (p *Provider) AvailableModels() []string {
	if p.deployment == "" {
		return nil
	}
	return []string{p.deployment}
}

// DefaultModel returns the deployment name
func (p *Provider) DefaultModel() string {
	return p.deployment
}

// IsConfigured reports whether endpoint, key and deployment are all set
func (p *Provider) IsConfigured() bool {
	return p.endpoint != "" && p.apiKey != "" && p.deployment != ""
}

// Azure names the token limit max_completion_tokens.
type chatRequest struct {
	Messages            []llm.Turn `json:"messages"`
	Stream              bool       `json:"stream"`
	MaxCompletionTokens *int       `json:"max_completion_tokens,omitempty"`
	Temperature         *float64   `json:"temperature,omitempty"`
	TopP                *float64   `json:"top_p,omitempty"`
	PresencePenalty     *float64   `json:"presence_penalty,omitempty"`
	FrequencyPenalty    *float64   `json:"frequency_penalty,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *Provider) url(deployment string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, url.PathEscape(deployment), url.QueryEscape(p.apiVersion))
}

// Complete sends the conversation and returns the assistant text
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	if !p.IsConfigured() {
		return "", llm.ErrNotConfigured
	}

	deployment := req.Model
	if deployment == "" {
		deployment = p.deployment
	}

	body, err := json.Marshal(chatRequest{
		Messages:            req.Turns,
		Stream:              false,
		MaxCompletionTokens: req.Options.MaxTokens,
		Temperature:         req.Options.Temperature,
		TopP:                req.Options.TopP,
		PresencePenalty:     req.Options.PresencePenalty,
		FrequencyPenalty:    req.Options.FrequencyPenalty,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(deployment), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &llm.UnreachableError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", llm.NewStatusError(p.Name(), resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", nil
	}
	return chatResp.Choices[0].Message.Content, nil
}
