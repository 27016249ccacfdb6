package llm

import (
	"context"
	"strings"
)

// DefaultSystemPrompt is prepended when a conversation carries no system turn
const DefaultSystemPrompt = "You are a helpful, concise assistant. Avoid repeating yourself. " +
	"Answer directly and clearly. If you are unsure, say so briefly."

// PrepareTurns trims every turn, drops empty turns and unknown roles, and
// prepends systemPrompt when no system turn is present.
func PrepareTurns(turns []Turn, systemPrompt string) []Turn {
	out := make([]Turn, 0, len(turns)+1)
	hasSystem := false
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" || !knownRole(t.Role) {
			continue
		}
		if t.Role == "system" {
			hasSystem = true
		}
		out = append(out, Turn{Role: t.Role, Content: content})
	}

	if !hasSystem && systemPrompt != "" {
		out = append([]Turn{{Role: "system", Content: systemPrompt}}, out...)
	}
	return out
}

func knownRole(role string) bool {
	switch role {
	case "system", "user", "assistant":
		return true
	}
	return false
}

// WithSystemPrompt wraps c so every request goes through PrepareTurns.
// An empty systemPrompt falls back to DefaultSystemPrompt. The wrapper
// streams whenever c does.
func WithSystemPrompt(c Client, systemPrompt string) Client {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	p := preparedClient{next: c, systemPrompt: systemPrompt}
	if sc, ok := c.(StreamingClient); ok {
		return preparedStreamingClient{preparedClient: p, stream: sc}
	}
	return p
}

type preparedClient struct {
	next         Client
	systemPrompt string
}

func (p preparedClient) prepare(req Request) Request {
	req.Turns = PrepareTurns(req.Turns, p.systemPrompt)
	return req
}

func (p preparedClient) Complete(ctx context.Context, req Request) (string, error) {
	return p.next.Complete(ctx, p.prepare(req))
}

type preparedStreamingClient struct {
	preparedClient
	stream StreamingClient
}

func (p preparedStreamingClient) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	return p.stream.Stream(ctx, p.prepare(req))
}

// Unavailable is a Client for deployments without a completion backend.
// It always fails with ErrNotConfigured.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}
