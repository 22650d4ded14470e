package openaiapi

import "time"

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

// Config is OpenAI-compatible chat completions client configuration.
type Config struct {
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CompletionRequest is a single chat completion request.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
}

// CompletionResponse is a single chat completion response.
type CompletionResponse struct {
	OutputText string
}
