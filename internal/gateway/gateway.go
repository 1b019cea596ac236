// Package gateway is a thin adapter over an OpenAI-compatible completion
// endpoint: one request, one response, no retries.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrImageCount marks the provider rejection for multi-image requests
// against a model that supports only one. Callers surface specific guidance
// for it instead of the generic apology.
var ErrImageCount = errors.New("gateway: model supports one image per request")

// imageCountMarker is the provider error substring that identifies the
// image-count rejection.
const imageCountMarker = "Only one candidate can be specified"

// Turn is one message in a model-facing conversation.
type Turn struct {
	Role    string   // "system", "user", or "assistant"
	Content string   // text content
	Images  []string // optional inline image data URLs, appended after the text
}

// Client calls the completion endpoint.
type Client struct {
	api *openai.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL    string // OpenAI-compatible API root, e.g. "http://127.0.0.1:8317/v1"
	APIKey     string
	HTTPClient *http.Client // optional; defaults to http.DefaultClient
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("gateway: base URL is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURL
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &Client{api: openai.NewClientWithConfig(cfg)}, nil
}

// Complete performs one synchronous completion call. No retries; the caller
// owns degradation on failure.
func (c *Client) Complete(ctx context.Context, model string, turns []Turn) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toMessages(turns),
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("gateway: completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage requests count images for a prompt. The result is either an
// image URL or a base64 payload, as produced by the provider.
func (c *Client) GenerateImage(ctx context.Context, model, prompt, size string, count int) (string, error) {
	if count < 1 {
		count = 1
	}
	content := prompt
	if size != "" {
		content = fmt.Sprintf("%s\n\n(render at %s)", prompt, size)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		N:     count,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("gateway: image generation returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// toMessages converts turns to API messages. A turn carrying images becomes
// a multi-part message: one text part followed by one image part per URL.
func toMessages(turns []Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		if len(t.Images) == 0 {
			msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
			continue
		}

		parts := make([]openai.ChatMessagePart, 0, len(t.Images)+1)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: t.Content,
		})
		for _, url := range t.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url},
			})
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, MultiContent: parts})
	}
	return msgs
}

// classify maps a provider error to the gateway taxonomy.
func classify(err error) error {
	if strings.Contains(err.Error(), imageCountMarker) {
		return fmt.Errorf("%w: %v", ErrImageCount, err)
	}
	return fmt.Errorf("gateway: completion: %w", err)
}
