package run

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireLock_Exclusive(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), ".racefix")
	first, ok, err := TryAcquireLock(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "locks", "run.lock"))

	_, ok, err = TryAcquireLock(dir)
	require.NoError(t, err)
	assert.False(t, ok, "second lock must fail while the first is held")

	require.NoError(t, first.Release())
	second, ok, err := TryAcquireLock(dir)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, second.Release())

	var nilLock *Lock
	assert.NoError(t, nilLock.Release())
}
