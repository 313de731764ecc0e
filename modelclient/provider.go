// Package modelclient is the foundation-model collaborator: a
// schema-constrained, JSON-in/JSON-out interface consumed by the PURPOSE,
// RETRIEVE (query rewrite), and INTERPRET stages. The transport layer is
// an OpenAI-compatible HTTP client with no official SDK dependency.
package modelclient

import (
	"context"
	"fmt"
)

// Provider is the low-level chat/embedding transport. Concrete backends
// (ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom) all
// speak the OpenAI-compatible chat-completions format.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" to request JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures a model provider endpoint.
type Config struct {
	Provider string `json:"provider"` // ollama, lmstudio, openrouter, openai, groq, xai, gemini, custom
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

// NewProvider creates a model provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "lmstudio":
		return NewLMStudio(cfg), nil
	case "openrouter":
		return NewOpenRouter(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "groq":
		return NewGroq(cfg), nil
	case "xai":
		return NewXAI(cfg), nil
	case "gemini":
		return NewGemini(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "":
		return nil, fmt.Errorf("modelclient: provider not specified")
	default:
		return nil, fmt.Errorf("modelclient: unknown provider: %s", cfg.Provider)
	}
}
