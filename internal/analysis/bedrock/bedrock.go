// Package bedrock is the analysis backend for models hosted on AWS
// Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/roasbeef/clinbox/internal/analysis"
)

const anthropicVersion = "bedrock-2023-05-31"

// Client implements analysis.Completer.
type Client struct {
	client  *bedrockruntime.Client
	modelID string
}

var _ analysis.Completer = (*Client)(nil)

// New loads the default AWS configuration for region and returns a client
// for modelID.
func New(ctx context.Context, region, modelID string) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w",
			err)
	}

	return &Client{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: modelID,
	}, nil
}

// Model returns the Bedrock model id.
func (c *Client) Model() string {
	return c.modelID
}

func (c *Client) isAnthropic() bool {
	return strings.Contains(c.modelID, "anthropic.")
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type genericRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

type genericResponse struct {
	Completion string `json:"completion"`
	Output     string `json:"output"`
	Text       string `json:"text"`
	Generation string `json:"generation"`
}

// EncodeRequest builds the model specific request body for req.
func (c *Client) EncodeRequest(req *analysis.Request) ([]byte, error) {
	if c.isAnthropic() {
		return json.Marshal(anthropicRequest{
			AnthropicVersion: anthropicVersion,
			System:           req.System,
			Messages: []anthropicMessage{
				{Role: "user", Content: req.User},
			},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
	}

	return json.Marshal(genericRequest{
		Prompt:      req.System + "\n\n" + req.User,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

// DecodeResponse extracts the answer text from a response body.
func (c *Client) DecodeResponse(body []byte) (string, error) {
	if c.isAnthropic() {
		var resp anthropicResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode Bedrock response: %w", err)
		}

		var b strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return "", analysis.ErrEmptyResponse
		}

		return b.String(), nil
	}

	var resp genericResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode Bedrock response: %w", err)
	}
	for _, s := range []string{
		resp.Completion, resp.Output, resp.Text, resp.Generation,
	} {
		if s != "" {
			return s, nil
		}
	}

	return "", analysis.ErrEmptyResponse
}

// Complete invokes the model with req.
func (c *Client) Complete(ctx context.Context,
	req *analysis.Request) (string, error) {

	payload, err := c.EncodeRequest(req)
	if err != nil {
		return "", err
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	return c.DecodeResponse(resp.Body)
}
