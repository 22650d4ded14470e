// Package config provides configuration loading and management for racefix.
package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultAgents is the number of concurrent fix generators per attempt.
	DefaultAgents = 3
	// DefaultMaxAttempts bounds the generate/verify rounds per failing test.
	DefaultMaxAttempts = 3
	// DefaultGeneratorTimeout bounds one fix generation task.
	DefaultGeneratorTimeout = 120 * time.Second
	// DefaultOracleTimeout bounds one test suite invocation.
	DefaultOracleTimeout = 300 * time.Second

	FrameworkAuto = "auto"

	AcceptanceLenient = "lenient"
	AcceptanceStrict  = "strict"
)

// DefaultTemperatures are the diversity values handed to generators, cycled by producer index.
var DefaultTemperatures = []float64{0.3, 0.5, 0.7, 0.9, 1.0}

// Config is the root configuration.
type Config struct {
	Provider     ProviderConfig  `json:"provider"      mapstructure:"provider"      yaml:"provider"`
	Agents       int             `json:"agents"        mapstructure:"agents"        yaml:"agents"`
	MaxAttempts  int             `json:"max_attempts"  mapstructure:"max_attempts"  yaml:"max_attempts"`
	Framework    string          `json:"framework"     mapstructure:"framework"     yaml:"framework"`
	Temperatures []float64       `json:"temperatures"  mapstructure:"temperatures"  yaml:"temperatures"`
	Acceptance   string          `json:"acceptance"    mapstructure:"acceptance"    yaml:"acceptance"`
	Oracle       OracleConfig    `json:"oracle"        mapstructure:"oracle"        yaml:"oracle"`
	Retention    RetentionPolicy `json:"retention"     mapstructure:"retention"     yaml:"retention"`
}

// ProviderConfig describes how fix candidates are generated.
// It is resolved once and injected into the generator at construction.
type ProviderConfig struct {
	Type      string        `json:"type,omitempty"        mapstructure:"type"        yaml:"type,omitempty"`
	Model     string        `json:"model,omitempty"       mapstructure:"model"       yaml:"model,omitempty"`
	BaseURL   string        `json:"base_url,omitempty"    mapstructure:"base_url"    yaml:"base_url,omitempty"`
	APIKey    string        `json:"api_key,omitempty"     mapstructure:"api_key"     yaml:"api_key,omitempty"`
	APIKeyEnv string        `json:"api_key_env,omitempty" mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"     mapstructure:"timeout"     yaml:"timeout,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"  mapstructure:"max_tokens"  yaml:"max_tokens,omitempty"`
	Cmd       []string      `json:"cmd,omitempty"         mapstructure:"cmd"         yaml:"cmd,omitempty"`
	UseTTY    *bool         `json:"use_tty,omitempty"     mapstructure:"use_tty"     yaml:"use_tty,omitempty"`
	// WorkDir is where exec agents get their per-invocation directories. Set at runtime.
	WorkDir string `json:"-" mapstructure:"-" yaml:"-"`
}

// OracleConfig controls test suite execution.
type OracleConfig struct {
	Timeout  time.Duration       `json:"timeout"            mapstructure:"timeout"  yaml:"timeout"`
	Commands map[string][]string `json:"commands,omitempty" mapstructure:"commands" yaml:"commands,omitempty"`
}

// RetentionPolicy defines how many old runs to keep.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last" yaml:"keep_last,omitempty"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days" yaml:"keep_days,omitempty"`
}

// Default returns a configuration with every field populated.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Timeout: DefaultGeneratorTimeout,
		},
		Agents:       DefaultAgents,
		MaxAttempts:  DefaultMaxAttempts,
		Framework:    FrameworkAuto,
		Temperatures: append([]float64(nil), DefaultTemperatures...),
		Acceptance:   AcceptanceLenient,
		Oracle: OracleConfig{
			Timeout: DefaultOracleTimeout,
		},
		Retention: RetentionPolicy{
			KeepLast: 50,
			KeepDays: 30,
		},
	}
}

// Validate checks semantic constraints the schema cannot express.
func (c Config) Validate() error {
	if c.Agents <= 0 {
		return fmt.Errorf("agents must be > 0")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be > 0")
	}
	if len(c.Temperatures) == 0 {
		return fmt.Errorf("temperatures must not be empty")
	}
	for _, t := range c.Temperatures {
		if t < 0 || t > 2 {
			return fmt.Errorf("temperature %v out of range [0, 2]", t)
		}
	}
	switch strings.ToLower(c.Acceptance) {
	case "", AcceptanceLenient, AcceptanceStrict:
	default:
		return fmt.Errorf("unknown acceptance policy %q", c.Acceptance)
	}
	if c.Oracle.Timeout < 0 {
		return fmt.Errorf("oracle.timeout must not be negative")
	}
	return nil
}
