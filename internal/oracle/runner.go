package oracle

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/metalagman/racefix/internal/logging"
)

const (
	defaultTimeout = 300 * time.Second
	waitDelay      = 2 * time.Second
	timeoutOutput  = "Test timeout"
)

// Runner executes a framework's test command as a subprocess.
type Runner struct {
	timeout  time.Duration
	commands map[Framework][]string
}

// NewRunner builds a runner. overrides replaces the default command per framework name.
func NewRunner(timeout time.Duration, overrides map[string][]string) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	commands := make(map[Framework][]string, len(overrides))
	for name, argv := range overrides {
		if len(argv) > 0 {
			commands[Framework(name)] = argv
		}
	}
	return &Runner{timeout: timeout, commands: commands}
}

// Command returns the argv used for a framework.
func (r *Runner) Command(fw Framework) ([]string, error) {
	s, err := Lookup(fw)
	if err != nil {
		return nil, err
	}
	if argv, ok := r.commands[s.Name]; ok {
		return argv, nil
	}
	return s.Command, nil
}

// Run executes the suite in root. It never returns an error: a suite that cannot start
// or exceeds the timeout yields an inconclusive, failed result with no identifiers.
// Cancellation of ctx does not interrupt a started run; only the timeout does.
func (r *Runner) Run(ctx context.Context, root string, fw Framework) Result {
	logger := logging.Component("oracle")
	s, err := Lookup(fw)
	if err != nil {
		return Result{Output: err.Error(), Inconclusive: true}
	}
	argv, _ := r.Command(fw)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = root
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	logger.Debug().Str("dir", root).Strs("cmd", argv).Msg("running test suite")
	runErr := cmd.Run()
	duration := time.Since(started)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Warn().Dur("timeout", r.timeout).Msg("test suite timed out")
		return Result{Output: timeoutOutput, Inconclusive: true}
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		logger.Warn().Err(runErr).Strs("cmd", argv).Msg("test suite could not run")
		return Result{Output: runErr.Error(), Inconclusive: true}
	}

	output := stdout.String() + stderr.String()
	res := Result{
		Passed:       runErr == nil,
		Output:       output,
		FailingTests: s.Parse(output),
	}
	logger.Debug().
		Bool("passed", res.Passed).
		Int("failing", len(res.FailingTests)).
		Dur("duration", duration).
		Msg("test suite finished")
	return res
}
