package llm

import "context"

// Turn is one message sent to a completion backend
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options holds generation parameters. A nil field is left out of the
// upstream request so the provider default applies.
type Options struct {
	MaxTokens        *int     `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Temperature      *float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	TopP             *float64 `json:"top_p,omitempty" mapstructure:"top_p"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" mapstructure:"presence_penalty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" mapstructure:"frequency_penalty"`
}

// Request contains the conversation and generation parameters
type Request struct {
	Turns   []Turn
	Options Options
	Model   string
}

// Client produces a single completed reply
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ChunkStream yields incremental reply text. Recv returns io.EOF once the
// reply is complete.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// StreamingClient is a Client that can also deliver the reply in chunks
type StreamingClient interface {
	Client
	Stream(ctx context.Context, req Request) (ChunkStream, error)
}

// Provider defines the interface for completion providers
type Provider interface {
	Client

	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool
}

// ProviderFactory creates a new provider instance
type ProviderFactory func() Provider
