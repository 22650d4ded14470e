package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/racefix/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const configHeader = `# racefix configuration.
# provider.type is one of openai, openrouter, anthropic, gemini or exec. When empty,
# the first of OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, OPENROUTER_API_KEY
# found in the environment (or in .env) selects the provider.
# Every key can be overridden with RACEFIX_<KEY>, e.g. RACEFIX_AGENTS=5.
`

const stateGitignore = "*\n!.gitignore\n!config.yaml\n"

// defaultConfigYAML renders config.Default() as a commented YAML document.
func defaultConfigYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.Default()); err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	return buf.Bytes(), nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:          "init [path]",
		Short:        "Create the .racefix directory with a default config",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(args)
			if err != nil {
				return err
			}
			if err := initProject(root, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "racefix initialized in", stateDir(root))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")
	return cmd
}

func initProject(root string, force bool) error {
	dir := stateDir(root)
	log.Info().Str("dir", dir).Msg("creating racefix directory")
	for _, sub := range []string{"runs", "locks"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(stateGitignore), 0o644); err != nil {
		return fmt.Errorf("write .gitignore: %w", err)
	}

	configPath := filepath.Join(root, defaultConfigPath)
	if _, err := os.Stat(configPath); err == nil && !force {
		log.Info().Msg("config.yaml already exists, skipping")
		return nil
	}
	data, err := defaultConfigYAML()
	if err != nil {
		return err
	}
	log.Info().Str("path", configPath).Msg("installing default config")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
