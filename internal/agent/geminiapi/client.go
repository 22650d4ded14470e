// Package geminiapi is a oneshot content generation client for the Gemini API.
package geminiapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Config is Gemini API client configuration.
type Config struct {
	Model   string
	BaseURL string
	APIKey  string
}

// CompletionRequest is a single generateContent request.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
}

// CompletionResponse is a single generateContent response.
type CompletionResponse struct {
	OutputText string
}

// Client wraps genai for text-only generation.
type Client struct {
	model  string
	client *genai.Client
}

// NewClient constructs a new client. httpClient may be nil.
func NewClient(ctx context.Context, cfg Config, httpClient *http.Client) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{model: model, client: client}, nil
}

// Complete executes a single generateContent request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	temperature := float32(req.Temperature)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("gemini generateContent: %w", err)
	}
	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return CompletionResponse{}, fmt.Errorf("gemini response did not contain output text")
	}
	return CompletionResponse{OutputText: output}, nil
}
