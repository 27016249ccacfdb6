package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Rrens/smart-chat/internal/config"
	"github.com/Rrens/smart-chat/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Provider struct {
	apiKey string
	model  string
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	}
}

func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-2.5-flash"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	stream, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	return llm.Collect(stream)
}

// Stream sends the conversation as a chat: every turn but the last becomes
// history, the last one is the new message.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (llm.ChunkStream, error) {
	if !p.IsConfigured() {
		return nil, llm.ErrNotConfigured
	}
	if len(req.Turns) == 0 {
		return nil, fmt.Errorf("gemini: empty conversation")
	}

	modelName := req.Model
	if modelName == "" {
		modelName = p.DefaultModel()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, &llm.UnreachableError{Provider: p.Name(), Err: err}
	}

	model := client.GenerativeModel(modelName)
	applyOptions(model, req.Options)

	cs := model.StartChat()
	var system []genai.Part
	turns := req.Turns
	last := turns[len(turns)-1]
	for _, t := range turns[:len(turns)-1] {
		switch t.Role {
		case "system":
			system = append(system, genai.Text(t.Content))
		case "assistant":
			cs.History = append(cs.History, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(t.Content)}})
		default:
			cs.History = append(cs.History, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(t.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}

	return &stream{
		client: client,
		iter:   cs.SendMessageStream(ctx, genai.Text(last.Content)),
	}, nil
}

func applyOptions(model *genai.GenerativeModel, o llm.Options) {
	if o.Temperature != nil {
		model.SetTemperature(float32(*o.Temperature))
	}
	if o.TopP != nil {
		model.SetTopP(float32(*o.TopP))
	}
	if o.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*o.MaxTokens))
	}
}

type stream struct {
	client *genai.Client
	iter   *genai.GenerateContentResponseIterator
}

func (s *stream) Recv() (string, error) {
	for {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				return "", &llm.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
			}
			return "", fmt.Errorf("gemini generation error: %w", err)
		}

		var text string
		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			for _, part := range resp.Candidates[0].Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text += string(t)
				}
			}
		}
		if text != "" {
			return text, nil
		}
	}
}

func (s *stream) Close() error {
	return s.client.Close()
}
