package store

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_CallsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	var changes atomic.Int32
	fw, err := NewFileWatcher(path, func() { changes.Add(1) }, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	require.NoError(t, fw.Start())
	defer fw.Stop()

	// Other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0600))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	assert.Eventually(t, func() bool {
		return changes.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_StopIdempotent(t *testing.T) {
	fw, err := NewFileWatcher(filepath.Join(t.TempDir(), "state.json"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, fw.Start())

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}
