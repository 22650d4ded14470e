package oracle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestContextResolver_Pytest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tests", "test_calc.py"), "def test_add():\n    assert add(1, 2) == 3\n")

	ctx, ok := ContextResolver{}.Resolve(root, "tests/test_calc.py::test_add", Pytest)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "tests", "test_calc.py"), ctx.File)
	assert.Contains(t, ctx.Content, "def test_add")

	_, ok = ContextResolver{}.Resolve(root, "tests/missing.py::test_x", Pytest)
	assert.False(t, ok)
	_, ok = ContextResolver{}.Resolve(root, "no-separator", Pytest)
	assert.False(t, ok)
}

func TestContextResolver_RejectsPathsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	writeFile(t, filepath.Join(parent, "secret.py"), "x = 1\n")
	require.NoError(t, os.MkdirAll(root, 0o755))

	_, ok := ContextResolver{}.Resolve(root, "../secret.py::test_x", Pytest)
	assert.False(t, ok)
}

func TestContextResolver_Go(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "calc", "calc_test.go"), "package calc\n\nfunc TestAdd(t *testing.T) {}\n")
	writeFile(t, filepath.Join(root, "vendor", "x", "x_test.go"), "package x\n\nfunc TestVendored(t *testing.T) {}\n")

	ctx, ok := ContextResolver{}.Resolve(root, "TestAdd/negative", Go)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "calc", "calc_test.go"), ctx.File)

	_, ok = ContextResolver{}.Resolve(root, "TestVendored", Go)
	assert.False(t, ok)
}

func TestContextResolver_NPMFileAndCargo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "sum.test.js"), "test('adds', () => {})\n")

	_, ok := ContextResolver{}.Resolve(root, "src/sum.test.js", NPM)
	assert.True(t, ok)
	_, ok = ContextResolver{}.Resolve(root, "adds negatives", NPM)
	assert.False(t, ok)
	_, ok = ContextResolver{}.Resolve(root, "tests::it_adds", Cargo)
	assert.False(t, ok)
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/a/b", "/a/b/c.txt"))
	assert.True(t, Within("/a/b", "/a/b"))
	assert.False(t, Within("/a/b", "/a/c.txt"))
	assert.True(t, Within("/a/b", "/a/b/..c"))
}
