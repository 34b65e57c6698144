// Package llm talks to the text-completion service and turns its free-form
// replies into workout entries.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// CompletionRequest carries everything sent for a single completion.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer returns the raw text of a model reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Client is a Completer backed by an OpenAI-compatible chat completions API.
type Client struct {
	client openai.Client
}

// NewClient builds a Client. An empty baseURL keeps the SDK default endpoint.
// SDK retries are disabled; a failed call is reported to the caller as is.
func NewClient(apiKey, baseURL string) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: openai.NewClient(opts...)}
}

// Complete sends the system instruction and prompt and returns the first
// choice's content, or "" when the service returned no choices.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	chat, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", nil
	}
	return chat.Choices[0].Message.Content, nil
}
