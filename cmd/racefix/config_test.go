package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestResolveConfigPath_DefaultYAMLPreferred(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	got := resolveConfigPath(repoRoot, "")
	want := filepath.Join(repoRoot, ".racefix", "config.yaml")
	if got != want {
		t.Fatalf("resolve config path = %q, want %q", got, want)
	}
	if abs := resolveConfigPath(repoRoot, "/etc/racefix.yaml"); abs != "/etc/racefix.yaml" {
		t.Fatalf("absolute path rewritten to %q", abs)
	}
}

func TestLoadConfig_UsesYAML(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), `provider:
  type: anthropic
  model: claude-sonnet-4-20250514
  timeout: 45
agents: 5
max_attempts: 2
framework: go
temperatures: [0.1, 0.9]
acceptance: strict
oracle:
  timeout: 10m
  commands:
    go: ["go", "test", "-count=1", "./..."]
retention:
  keep_last: 10
  keep_days: 5
`); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Provider.Type != "anthropic" || cfg.Provider.Timeout != 45*time.Second {
		t.Fatalf("provider = %+v", cfg.Provider)
	}
	if cfg.Agents != 5 || cfg.MaxAttempts != 2 || cfg.Framework != "go" || cfg.Acceptance != "strict" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Temperatures) != 2 || cfg.Temperatures[1] != 0.9 {
		t.Fatalf("temperatures = %v", cfg.Temperatures)
	}
	if cfg.Oracle.Timeout != 10*time.Minute {
		t.Fatalf("oracle.timeout = %v, want 10m", cfg.Oracle.Timeout)
	}
	if got := strings.Join(cfg.Oracle.Commands["go"], " "); got != "go test -count=1 ./..." {
		t.Fatalf("oracle.commands.go = %q", got)
	}
	if cfg.Retention.KeepLast != 10 || cfg.Retention.KeepDays != 5 {
		t.Fatalf("retention = %+v", cfg.Retention)
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Agents != 3 || cfg.MaxAttempts != 3 || cfg.Framework != "auto" {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
	if cfg.Provider.Timeout != 120*time.Second || cfg.Oracle.Timeout != 300*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.Provider.Timeout, cfg.Oracle.Timeout)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), "agents: 2\n"); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}
	t.Setenv("RACEFIX_AGENTS", "7")
	t.Setenv("RACEFIX_PROVIDER_MODEL", "gpt-4o")

	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Agents != 7 {
		t.Fatalf("agents = %d, want env value 7", cfg.Agents)
	}
	if cfg.Provider.Model != "gpt-4o" {
		t.Fatalf("provider.model = %q, want gpt-4o", cfg.Provider.Model)
	}
}

func TestLoadConfig_RejectsSchemaViolations(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), "framework: maven\n"); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := loadConfig(repoRoot)
	if err == nil {
		t.Fatal("load config returned nil error, want schema failure")
	}
	if !strings.Contains(err.Error(), "framework") {
		t.Fatalf("error = %q, want framework failure", err)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", "nope.yaml")

	if _, err := loadConfig(t.TempDir()); err == nil {
		t.Fatal("load config returned nil error for a missing explicit config")
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, ".env"), "RACEFIX_TEST_A=from-file\nRACEFIX_TEST_B=from-file\n"); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("RACEFIX_TEST_A", "from-env")
	t.Setenv("RACEFIX_TEST_B", "")
	if err := os.Unsetenv("RACEFIX_TEST_B"); err != nil {
		t.Fatalf("unset: %v", err)
	}

	if err := loadDotEnv(repoRoot); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv("RACEFIX_TEST_A"); got != "from-env" {
		t.Fatalf("RACEFIX_TEST_A = %q, want existing value kept", got)
	}
	if got := os.Getenv("RACEFIX_TEST_B"); got != "from-file" {
		t.Fatalf("RACEFIX_TEST_B = %q, want value from .env", got)
	}
	if err := loadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func writeTestFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
