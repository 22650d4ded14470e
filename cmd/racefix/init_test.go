package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultConfigYAML_IsLoadable(t *testing.T) {
	repoRoot := t.TempDir()
	data, err := defaultConfigYAML()
	if err != nil {
		t.Fatalf("render default config: %v", err)
	}
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), string(data)); err != nil {
		t.Fatalf("write default config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if cfg.Retention.KeepLast != 50 || cfg.Retention.KeepDays != 30 {
		t.Fatalf("retention = %+v", cfg.Retention)
	}
}

func TestInitProject_KeepsExistingConfig(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	if err := initProject(repoRoot, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, dir := range []string{"runs", "locks"} {
		if info, err := os.Stat(filepath.Join(repoRoot, ".racefix", dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected .racefix/%s dir, err=%v", dir, err)
		}
	}

	configPath := filepath.Join(repoRoot, defaultConfigPath)
	if err := os.WriteFile(configPath, []byte("agents: 9\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := initProject(repoRoot, false); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if data, _ := os.ReadFile(configPath); string(data) != "agents: 9\n" {
		t.Fatalf("config overwritten without --force: %q", data)
	}

	if err := initProject(repoRoot, true); err != nil {
		t.Fatalf("forced init: %v", err)
	}
	if data, _ := os.ReadFile(configPath); string(data) == "agents: 9\n" {
		t.Fatal("config not replaced with --force")
	}
}
