// Package patch writes candidate file contents into a project tree and restores them.
//
// Writes are full-file replacements. Each write goes to a temporary file in the target
// directory followed by a rename, which is atomic on POSIX filesystems but not durable
// across a crash; the caller re-runs the test oracle after every write.
package patch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/racefix/internal/logging"
	"github.com/metalagman/racefix/internal/model"
)

const defaultMode fs.FileMode = 0o644

// Applier mutates files below a project root.
type Applier struct {
	root string
}

// NewApplier returns an applier rooted at root.
func NewApplier(root string) *Applier {
	return &Applier{root: filepath.Clean(root)}
}

// Root returns the project root.
func (a *Applier) Root() string {
	return a.root
}

// Resolve makes path absolute against the project root.
func (a *Applier) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(a.root, path)
}

var (
	errOutsideRoot = errors.New("path outside project root")
	errSymlink     = errors.New("target is a symlink")
	errNotRegular  = errors.New("not a regular file")
)

// Apply writes content verbatim to path. It reports false on any failure,
// including a path that resolves outside the project root.
func (a *Applier) Apply(path, content string) bool {
	target := a.Resolve(path)
	if err := a.write(target, content, 0); err != nil {
		logger := logging.Component("patch")
		logger.Warn().Err(err).Str("path", target).Msg("apply failed")
		return false
	}
	return true
}

// Snapshot captures the current content and permissions of path. A missing
// file yields an empty snapshot with Existed=false.
func (a *Applier) Snapshot(path string) (model.Snapshot, error) {
	target := a.Resolve(path)
	if err := a.contain(target); err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %s: %w", target, err)
	}
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Snapshot{Path: target}, nil
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %s: %w", target, err)
	}
	if err := checkRegular(info); err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %s: %w", target, err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %s: %w", target, err)
	}
	return model.Snapshot{
		Path:            target,
		OriginalContent: string(data),
		Existed:         true,
		Mode:            info.Mode().Perm(),
	}, nil
}

// Restore puts a snapshot back. A snapshot of a missing file removes the file.
func (a *Applier) Restore(s model.Snapshot) bool {
	logger := logging.Component("patch")
	if s.Existed {
		if err := a.write(s.Path, s.OriginalContent, s.Mode); err != nil {
			logger.Warn().Err(err).Str("path", s.Path).Msg("restore failed")
			return false
		}
		return true
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Str("path", s.Path).Msg("restore failed")
		return false
	}
	return true
}

// write replaces target with content. A zero mode keeps the mode of the
// existing file, or defaultMode for a new one.
func (a *Applier) write(target, content string, mode fs.FileMode) error {
	if err := a.contain(target); err != nil {
		return err
	}
	if info, err := os.Lstat(target); err == nil {
		if err := checkRegular(info); err != nil {
			return err
		}
		if mode == 0 {
			mode = info.Mode().Perm()
		}
	}
	if mode == 0 {
		mode = defaultMode
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".racefix-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func checkRegular(info fs.FileInfo) error {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return errSymlink
	case !info.Mode().IsRegular():
		return errNotRegular
	}
	return nil
}

// contain checks target against the root lexically and again after resolving
// symlinks in its existing parent directories.
func (a *Applier) contain(target string) error {
	if !within(a.root, target) {
		return errOutsideRoot
	}
	realRoot, err := filepath.EvalSymlinks(a.root)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	dir, rest := filepath.Dir(target), filepath.Base(target)
	for {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	if !within(realRoot, filepath.Join(realDir, rest)) {
		return errOutsideRoot
	}
	return nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
