package oracle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		marker string
		want   Framework
	}{
		{"pytest.ini", Pytest},
		{"pyproject.toml", Pytest},
		{"package.json", NPM},
		{"Cargo.toml", Cargo},
		{"go.mod", Go},
		{"", Pytest},
	}
	for _, tt := range tests {
		t.Run(string(tt.want)+"/"+tt.marker, func(t *testing.T) {
			dir := t.TempDir()
			if tt.marker != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, tt.marker), nil, 0o644))
			}
			assert.Equal(t, tt.want, Detect(dir))
		})
	}
}

func TestDetect_PytestWinsOverGo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), nil, 0o644))
	assert.Equal(t, Pytest, Detect(dir))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), nil, 0o644))

	fw, err := Resolve(dir, Auto)
	require.NoError(t, err)
	assert.Equal(t, Cargo, fw)

	fw, err = Resolve(dir, "GO")
	require.NoError(t, err)
	assert.Equal(t, Go, fw)

	_, err = Resolve(dir, "maven")
	assert.ErrorIs(t, err, ErrUnknownFramework)
}
