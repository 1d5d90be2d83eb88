// Package llm provides the decision-service boundary: chat providers,
// retry, prompt builders, and structured extraction of model output.
package llm

import (
	"context"
	"fmt"
)

// Message is one entry in a chat transcript.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Options tunes a single chat call.
type Options struct {
	Model     string
	MaxTokens int
}

// Provider is an opaque "ask for a chat completion, get text back"
// capability. Implementations must tolerate high call concurrency and
// arbitrary latency.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Society is the session context prompts are built from.
type Society struct {
	Idea      string
	Overview  string
	Law       string
	TimeScale string
}

// NewProvider creates a provider for the configured backend. Gemini is
// reached through its OpenAI-compatible endpoint; "local" targets an
// LM Studio / Ollama style server where no real API key is required.
func NewProvider(kind, apiKey, baseURL string) (Provider, error) {
	switch kind {
	case "claude":
		return NewAnthropic(apiKey), nil
	case "openai":
		return NewOpenAICompatible("https://api.openai.com/v1", apiKey), nil
	case "gemini":
		return NewOpenAICompatible("https://generativelanguage.googleapis.com/v1beta/openai", apiKey), nil
	case "local":
		if baseURL == "" {
			baseURL = "http://localhost:1234/v1"
		}
		if apiKey == "" {
			apiKey = "lm-studio"
		}
		return NewOpenAICompatible(baseURL, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", kind)
	}
}
