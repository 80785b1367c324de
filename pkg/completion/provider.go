// Package completion wraps the external language-completion service behind
// a small provider interface. The decision call requests strict single
// JSON object output; the synthesis call is free-form text.
package completion

import (
	"context"
	"fmt"
)

// Message is a single turn handed to the completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the parameters for one completion round trip.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int

	// JSONOnly constrains the response to a single JSON object. Only the
	// decision call sets this.
	JSONOnly bool
}

// Provider is an interface for completion service backends.
type Provider interface {
	// Complete makes one blocking completion call. Callers apply timeouts
	// through ctx; a timeout is a service failure, never a cancellation of
	// already-applied state.
	Complete(ctx context.Context, request Request) (string, error)

	// Name returns the provider name.
	Name() string
}

// Options configures provider construction.
type Options struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	BaseURL  string // OpenAI-compatible endpoints only (e.g. Groq)
	Model    string
}

// NewProvider creates a completion provider from options.
func NewProvider(opts Options) (Provider, error) {
	switch opts.Provider {
	case "openai":
		return NewOpenAIProvider(opts.APIKey, opts.BaseURL, opts.Model), nil
	case "anthropic":
		return NewAnthropicProvider(opts.APIKey, opts.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}
}
