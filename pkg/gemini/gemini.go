// Package gemini wraps the Google GenAI SDK behind a small text-generation
// surface so callers do not depend on the SDK types.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey string `envconfig:"API_KEY" split_words:"true"`
	Model  string `envconfig:"MODEL" split_words:"true" default:"gemini-2.5-flash"`
}

// Client generates text with a fixed Gemini model.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient builds a Gemini client. With an empty APIKey the SDK falls back
// to application-default credentials.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var clientCfg *genai.ClientConfig
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		clientCfg = &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Client{client: client, model: model}, nil
}

// Generate sends a single prompt and returns the model's text response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return resp.Text(), nil
}
