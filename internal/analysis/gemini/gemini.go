// Package gemini is the analysis backend for Google Gemini models.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/roasbeef/clinbox/internal/analysis"
	"google.golang.org/api/option"
)

// Client implements analysis.Completer.
type Client struct {
	client    *genai.Client
	modelName string
}

var _ analysis.Completer = (*Client)(nil)

// New creates a Gemini client authenticated with apiKey.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, modelName: model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.modelName
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Complete runs req against the model.
func (c *Client) Complete(ctx context.Context,
	req *analysis.Request) (string, error) {

	model := c.client.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w",
			c.modelName, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", analysis.ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", analysis.ErrEmptyResponse
	}

	return b.String(), nil
}
