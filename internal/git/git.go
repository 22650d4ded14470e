// Package git reads repository metadata for run history.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Info describes the repository state at the start of a run.
type Info struct {
	Head   string
	Branch string
	Dirty  bool
}

// Available checks if the given directory is inside a git work tree.
func Available(ctx context.Context, repoRoot string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = repoRoot
	return cmd.Run() == nil
}

// RunCmdOutput runs a command in dir and returns its combined output.
func RunCmdOutput(ctx context.Context, dir string, name string, args ...string) (string, error) {
	log.Debug().Str("dir", dir).Str("cmd", name).Strs("args", args).Msg("running git command (output return)")
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// HeadCommit returns the full hash of HEAD.
func HeadCommit(ctx context.Context, repoRoot string) (string, error) {
	out, err := RunCmdOutput(ctx, repoRoot, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked out branch, or "HEAD" when detached.
func CurrentBranch(ctx context.Context, repoRoot string) (string, error) {
	out, err := RunCmdOutput(ctx, repoRoot, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		return "", fmt.Errorf("resolve branch: empty branch name")
	}
	return branch, nil
}

// Dirty reports uncommitted changes outside the .racefix state directory.
func Dirty(ctx context.Context, repoRoot string) (bool, error) {
	out, err := RunCmdOutput(ctx, repoRoot, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.Trim(line[3:], `"`)
		if path == ".racefix/" || strings.HasPrefix(path, ".racefix/") {
			continue
		}
		return true, nil
	}
	return false, nil
}

// DiffStat summarizes working tree changes against HEAD.
func DiffStat(ctx context.Context, repoRoot string) (string, error) {
	out, err := RunCmdOutput(ctx, repoRoot, "git", "diff", "--stat", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

// Describe collects Info. ok is false when repoRoot is not a git work tree
// or has no commits yet.
func Describe(ctx context.Context, repoRoot string) (Info, bool) {
	if !Available(ctx, repoRoot) {
		return Info{}, false
	}
	head, err := HeadCommit(ctx, repoRoot)
	if err != nil {
		log.Debug().Err(err).Msg("no HEAD commit")
		return Info{}, false
	}
	info := Info{Head: head}
	if branch, err := CurrentBranch(ctx, repoRoot); err == nil {
		info.Branch = branch
	}
	if dirty, err := Dirty(ctx, repoRoot); err == nil {
		info.Dirty = dirty
	}
	return info, true
}
