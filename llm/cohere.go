package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

const defaultCohereModel = "command-a-03-2025"

// Cohere generates text with Cohere's v2 chat endpoint.
// Docs: https://docs.cohere.com/reference/chat
type Cohere struct {
	client *cohereclient.Client
	model  string
}

func NewCohere(apiKey, model string, httpClient *http.Client) *Cohere {
	if model == "" {
		model = defaultCohereModel
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &Cohere{client: client, model: model}
}

func (c *Cohere) Generate(ctx context.Context, messages []Message, cfg ModelConfig) (string, error) {
	model := cfg.Model
	if model == "" {
		model = c.model
	}

	req := &cohere.V2ChatRequest{
		Model:    model,
		Messages: toCohereMessages(messages),
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		req.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		req.MaxTokens = &n
	}

	resp, err := c.client.V2.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil || resp.Message == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, item := range resp.Message.Content {
		if item != nil && item.Text != nil {
			sb.WriteString(item.Text.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toCohereMessages(messages []Message) cohere.ChatMessages {
	out := make(cohere.ChatMessages, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, &cohere.ChatMessageV2{
				Role:   "system",
				System: &cohere.SystemMessageV2{Content: &cohere.SystemMessageV2Content{String: m.Content}},
			})
		case RoleAssistant:
			out = append(out, &cohere.ChatMessageV2{
				Role:      "assistant",
				Assistant: &cohere.AssistantMessage{Content: &cohere.AssistantMessageV2Content{String: m.Content}},
			})
		default:
			out = append(out, &cohere.ChatMessageV2{
				Role: "user",
				User: &cohere.UserMessageV2{Content: &cohere.UserMessageV2Content{String: m.Content}},
			})
		}
	}
	return out
}
