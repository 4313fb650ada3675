// Package openai is the analysis backend for OpenAI compatible chat APIs,
// including OpenRouter.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/roasbeef/clinbox/internal/analysis"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	// OpenRouterBaseURL is the default endpoint.
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// OpenAIBaseURL is the endpoint of the OpenAI API itself.
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// Config configures the client.
type Config struct {
	APIKey string
	Model  string

	// BaseURL selects the API endpoint. Empty means OpenRouter.
	BaseURL string
}

// Client implements analysis.Completer.
type Client struct {
	client *goopenai.Client
	model  string
}

var _ analysis.Completer = (*Client)(nil)

// attribution adds the OpenRouter app attribution headers.
type attribution struct {
	base http.RoundTripper
}

func (a attribution) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("HTTP-Referer", "https://github.com/roasbeef/clinbox")
	r.Header.Set("X-Title", "clinbox")

	return a.base.RoundTrip(r)
}

// New returns a chat client for cfg.
func New(cfg Config) *Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)

	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = OpenRouterBaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Transport: attribution{base: http.DefaultTransport},
	}

	return &Client{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends req as a system plus user chat exchange.
func (c *Client) Complete(ctx context.Context,
	req *analysis.Request) (string, error) {

	resp, err := c.client.CreateChatCompletion(ctx,
		goopenai.ChatCompletionRequest{
			Model: c.model,
			Messages: []goopenai.ChatCompletionMessage{
				{
					Role:    goopenai.ChatMessageRoleSystem,
					Content: req.System,
				},
				{
					Role:    goopenai.ChatMessageRoleUser,
					Content: req.User,
				},
			},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("chat completion with %s: %w", c.model,
			err)
	}

	if len(resp.Choices) == 0 {
		return "", analysis.ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}
