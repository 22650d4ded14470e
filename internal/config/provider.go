package config

import (
	"fmt"
	"strings"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderExec       = "exec"
)

type providerDefaults struct {
	name     string
	keyEnv   string
	modelEnv string
	model    string
}

// providerOrder is the lookup order used when no provider type is configured.
var providerOrder = []providerDefaults{
	{name: ProviderOpenAI, keyEnv: "OPENAI_API_KEY", modelEnv: "OPENAI_MODEL", model: "gpt-4o-mini"},
	{name: ProviderAnthropic, keyEnv: "ANTHROPIC_API_KEY", modelEnv: "ANTHROPIC_MODEL", model: "claude-sonnet-4-20250514"},
	{name: ProviderGemini, keyEnv: "GEMINI_API_KEY", modelEnv: "GEMINI_MODEL", model: "gemini-2.0-flash"},
	{name: ProviderOpenRouter, keyEnv: "OPENROUTER_API_KEY", modelEnv: "OPENROUTER_MODEL", model: "anthropic/claude-sonnet-4-20250514"},
}

func defaultsFor(name string) (providerDefaults, bool) {
	for _, d := range providerOrder {
		if d.name == name {
			return d, true
		}
	}
	return providerDefaults{}, false
}

// ResolveProvider turns a possibly partial provider block into a complete one.
// getenv is the only place environment values are read; callers pass os.Getenv.
func ResolveProvider(cfg ProviderConfig, getenv func(string) string) (ProviderConfig, error) {
	out := cfg
	if out.Timeout <= 0 {
		out.Timeout = DefaultGeneratorTimeout
	}
	typ := strings.ToLower(strings.TrimSpace(out.Type))

	if typ == ProviderExec {
		if len(out.Cmd) == 0 {
			return ProviderConfig{}, fmt.Errorf("exec provider requires cmd")
		}
		out.Type = ProviderExec
		return out, nil
	}

	if typ == "" {
		for _, d := range providerOrder {
			if strings.TrimSpace(getenv(d.keyEnv)) != "" {
				typ = d.name
				break
			}
		}
		if typ == "" {
			return ProviderConfig{}, fmt.Errorf("no API key found: set OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, or OPENROUTER_API_KEY")
		}
	}

	d, ok := defaultsFor(typ)
	if !ok {
		return ProviderConfig{}, fmt.Errorf("unknown provider %q", cfg.Type)
	}
	out.Type = typ

	if strings.TrimSpace(out.APIKey) == "" {
		envKey := strings.TrimSpace(out.APIKeyEnv)
		if envKey == "" {
			envKey = d.keyEnv
		}
		out.APIKey = strings.TrimSpace(getenv(envKey))
	}
	if out.APIKey == "" {
		return ProviderConfig{}, fmt.Errorf("%s api key is required (set api_key or api_key_env)", typ)
	}
	if strings.TrimSpace(out.Model) == "" {
		out.Model = strings.TrimSpace(getenv(d.modelEnv))
	}
	if out.Model == "" {
		out.Model = d.model
	}
	return out, nil
}
