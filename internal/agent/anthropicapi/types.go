package anthropicapi

import "time"

const (
	defaultMaxTokens = 4096
	defaultTimeout   = 120 * time.Second
)

// Config is Anthropic messages API client configuration.
type Config struct {
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// CompletionRequest is a single messages API request.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
}

// CompletionResponse is a single messages API response.
type CompletionResponse struct {
	OutputText string
}
