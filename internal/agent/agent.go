// Package agent generates fix candidates by prompting a model provider.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/metalagman/racefix/internal/agent/anthropicapi"
	"github.com/metalagman/racefix/internal/agent/geminiapi"
	"github.com/metalagman/racefix/internal/agent/openaiapi"
	"github.com/metalagman/racefix/internal/config"
	"github.com/metalagman/racefix/internal/model"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Request is the context handed to one generation task.
type Request struct {
	ProducerID    int     `json:"producer_id"`
	TestID        string  `json:"test_name"`
	TargetFile    string  `json:"test_file"`
	TargetContent string  `json:"test_source"`
	FailureOutput string  `json:"test_output"`
	Temperature   float64 `json:"temperature"`
}

// Generator produces one candidate per call.
type Generator interface {
	Generate(ctx context.Context, req Request) (model.Candidate, error)
}

// Completer sends a prompt to a provider and returns its raw text answer.
type Completer interface {
	Complete(ctx context.Context, req Request, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request, prompt string) (string, error) {
	return f(ctx, req, prompt)
}

// PromptGenerator turns a provider completion into a candidate.
type PromptGenerator struct {
	provider  string
	completer Completer
}

// NewPromptGenerator wraps an arbitrary completer.
func NewPromptGenerator(provider string, completer Completer) *PromptGenerator {
	return &PromptGenerator{provider: provider, completer: completer}
}

// NewGenerator builds the generator for a resolved provider configuration.
// httpClient may be nil.
func NewGenerator(ctx context.Context, cfg config.ProviderConfig, httpClient *http.Client) (*PromptGenerator, error) {
	completer, err := newCompleter(ctx, cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Type, err)
	}
	return NewPromptGenerator(cfg.Type, completer), nil
}

// Provider returns the provider name.
func (g *PromptGenerator) Provider() string {
	return g.provider
}

// Generate prompts the provider and parses its answer.
func (g *PromptGenerator) Generate(ctx context.Context, req Request) (model.Candidate, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("build prompt: %w", err)
	}
	raw, err := g.completer.Complete(ctx, req, prompt)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("run %s agent: %w", g.provider, err)
	}
	return ParseCandidate(raw, req)
}

func newCompleter(ctx context.Context, cfg config.ProviderConfig, httpClient *http.Client) (Completer, error) {
	switch strings.ToLower(cfg.Type) {
	case config.ProviderOpenAI, config.ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" && strings.EqualFold(cfg.Type, config.ProviderOpenRouter) {
			baseURL = openRouterBaseURL
		}
		client, err := openaiapi.NewClient(openaiapi.Config{
			Model:   cfg.Model,
			BaseURL: baseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, httpClient)
		if err != nil {
			return nil, err
		}
		return CompleterFunc(func(ctx context.Context, req Request, prompt string) (string, error) {
			out, err := client.Complete(ctx, openaiapi.CompletionRequest{Prompt: prompt, Temperature: req.Temperature})
			return out.OutputText, err
		}), nil
	case config.ProviderAnthropic:
		client, err := anthropicapi.NewClient(anthropicapi.Config{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, httpClient)
		if err != nil {
			return nil, err
		}
		return CompleterFunc(func(ctx context.Context, req Request, prompt string) (string, error) {
			out, err := client.Complete(ctx, anthropicapi.CompletionRequest{Prompt: prompt, Temperature: req.Temperature})
			return out.OutputText, err
		}), nil
	case config.ProviderGemini:
		client, err := geminiapi.NewClient(ctx, geminiapi.Config{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
		}, httpClient)
		if err != nil {
			return nil, err
		}
		return CompleterFunc(func(ctx context.Context, req Request, prompt string) (string, error) {
			out, err := client.Complete(ctx, geminiapi.CompletionRequest{Prompt: prompt, Temperature: req.Temperature})
			return out.OutputText, err
		}), nil
	case config.ProviderExec:
		return newExecCompleter(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
