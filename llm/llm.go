// Package llm wraps the text generation providers behind one Generator
// interface: single request, single response, no streaming.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Role of a message in a generation request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelConfig tunes a single generation call. Zero values leave the
// provider defaults in place.
type ModelConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator produces a completion for a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message, cfg ModelConfig) (string, error)
}

var (
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrMissingCredentials is returned when no API key is configured.
	ErrMissingCredentials = errors.New("no API key configured for the language model provider")
)

// Providers accepted by New.
const (
	ProviderCohere = "cohere"
	ProviderOpenAI = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string
	Timeout time.Duration
}

// New builds the Generator for cfg.Provider.
func New(cfg Config) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderCohere:
		return NewCohere(cfg.APIKey, cfg.Model, httpClient), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
