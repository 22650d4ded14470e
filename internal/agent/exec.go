package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/metalagman/ainvoke"
	"github.com/metalagman/racefix/internal/config"
	"github.com/metalagman/racefix/internal/logging"
)

const execInputSchema = `{
  "type": "object",
  "properties": {
    "producer_id": {"type": "integer"},
    "test_name": {"type": "string"},
    "test_file": {"type": "string"},
    "test_source": {"type": "string"},
    "test_output": {"type": "string"},
    "temperature": {"type": "number"}
  },
  "required": ["test_name", "test_output"]
}`

// execCompleter runs a local agent CLI (codex, claude, gemini, ...) through ainvoke.
// The agent receives the request as input.json and must answer with the candidate JSON.
type execCompleter struct {
	cmd     []string
	workDir string
	runner  ainvoke.Runner
}

func newExecCompleter(cfg config.ProviderConfig) (Completer, error) {
	if len(cfg.Cmd) == 0 {
		return nil, fmt.Errorf("exec agent requires cmd")
	}
	useTTY := false
	if cfg.UseTTY != nil {
		useTTY = *cfg.UseTTY
	}
	ar, err := ainvoke.NewRunner(ainvoke.AgentConfig{
		Cmd:    cfg.Cmd,
		UseTTY: useTTY,
	})
	if err != nil {
		return nil, err
	}
	return &execCompleter{cmd: cfg.Cmd, workDir: cfg.WorkDir, runner: ar}, nil
}

func (e *execCompleter) Complete(ctx context.Context, req Request, prompt string) (string, error) {
	if e.workDir != "" {
		if err := os.MkdirAll(e.workDir, 0o755); err != nil {
			return "", fmt.Errorf("create agent work dir: %w", err)
		}
	}
	runDir, err := os.MkdirTemp(e.workDir, fmt.Sprintf("producer-%d-*", req.ProducerID))
	if err != nil {
		return "", fmt.Errorf("create agent run dir: %w", err)
	}

	inv := ainvoke.Invocation{
		RunDir:       runDir,
		SystemPrompt: prompt,
		Input:        req,
		InputSchema:  execInputSchema,
		OutputSchema: candidateSchema,
	}

	var stdout io.Writer = io.Discard
	if logging.DebugEnabled() {
		stdout = os.Stderr
	}
	var stderr bytes.Buffer
	out, _, exitCode, err := e.runner.Run(ctx, inv, ainvoke.WithStdout(stdout), ainvoke.WithStderr(&stderr))
	if err != nil {
		return "", fmt.Errorf("run %s: %w", e.cmd[0], err)
	}
	if exitCode != 0 {
		return "", fmt.Errorf("%s exited with code %d: %s", e.cmd[0], exitCode, strings.TrimSpace(stderr.String()))
	}
	logging.Component("agent").Debug().Str("run_dir", runDir).Int("producer", req.ProducerID).Msg("exec agent finished")
	return string(out), nil
}
