package patch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplier_ApplyRelativeAndAbsolute(t *testing.T) {
	root := t.TempDir()
	a := NewApplier(root)

	require.True(t, a.Apply("calc.py", "def add(a, b):\n    return a + b\n"))
	data, err := os.ReadFile(filepath.Join(root, "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, "def add(a, b):\n    return a + b\n", string(data))

	abs := filepath.Join(root, "other.py")
	require.True(t, a.Apply(abs, "x = 1\n"))
	data, err = os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))
}

func TestApplier_ApplyFailuresReturnFalse(t *testing.T) {
	root := t.TempDir()
	a := NewApplier(root)

	assert.False(t, a.Apply("missing/dir/file.py", "x"))
	assert.False(t, a.Apply("../escape.py", "x"))
	assert.False(t, a.Apply(root, "x"))
	_, err := os.Stat(filepath.Join(filepath.Dir(root), "escape.py"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplier_SnapshotRestoreExisting(t *testing.T) {
	root := t.TempDir()
	a := NewApplier(root)
	path := filepath.Join(root, "calc.py")
	original := "def add(a, b):\n    return a - b\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	snap, err := a.Snapshot("calc.py")
	require.NoError(t, err)
	assert.True(t, snap.Existed)
	assert.Equal(t, original, snap.OriginalContent)

	require.True(t, a.Apply("calc.py", "broken"))
	require.True(t, a.Restore(snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestApplier_SnapshotRestoreMissingFileRemovesIt(t *testing.T) {
	root := t.TempDir()
	a := NewApplier(root)

	snap, err := a.Snapshot("new.py")
	require.NoError(t, err)
	assert.False(t, snap.Existed)
	assert.Empty(t, snap.OriginalContent)

	require.True(t, a.Apply("new.py", "content"))
	require.True(t, a.Restore(snap))
	_, err = os.Stat(filepath.Join(root, "new.py"))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestApplier_SnapshotOutsideRoot(t *testing.T) {
	a := NewApplier(t.TempDir())
	_, err := a.Snapshot("../x.py")
	assert.Error(t, err)
}

func TestApplier_RestoreBringsBackMode(t *testing.T) {
	root := t.TempDir()
	a := NewApplier(root)
	path := filepath.Join(root, "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644))
	require.NoError(t, os.Chmod(path, 0o755))

	snap, err := a.Snapshot("run.sh")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), snap.Mode)

	require.True(t, a.Apply("run.sh", "exit 1\n"))
	require.NoError(t, os.Chmod(path, 0o600))
	require.True(t, a.Restore(snap))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestApplier_SymlinkTargetIsRefused(t *testing.T) {
	root := t.TempDir()
	a := NewApplier(root)
	target := filepath.Join(root, "real.py")
	link := filepath.Join(root, "test_x.py")
	require.NoError(t, os.WriteFile(target, []byte("orig\n"), 0o644))
	require.NoError(t, os.Symlink("real.py", link))

	_, err := a.Snapshot("test_x.py")
	require.ErrorIs(t, err, errSymlink)
	assert.False(t, a.Apply("test_x.py", "changed\n"))

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link must stay a symlink")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "orig\n", string(data))
}

func TestApplier_SymlinkedDirectoryCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	elsewhere := t.TempDir()
	a := NewApplier(root)
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(root, "link")))

	_, err := a.Snapshot("link/x.py")
	require.ErrorIs(t, err, errOutsideRoot)
	assert.False(t, a.Apply("link/x.py", "payload"))
	assert.False(t, a.Apply("link/deeper/x.py", "payload"))

	entries, err := os.ReadDir(elsewhere)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApplier_SymlinkedDirectoryInsideRootIsAllowed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.Symlink("src", filepath.Join(root, "alias")))
	a := NewApplier(root)

	require.True(t, a.Apply("alias/calc.py", "x = 1\n"))
	data, err := os.ReadFile(filepath.Join(root, "src", "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))
}
