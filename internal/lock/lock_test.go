package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "mzb.lock")

	release, err := Acquire(lockPath, "backup")
	require.NoError(t, err)

	_, err = os.Stat(lockPath)
	require.NoError(t, err, "lock file should exist while held")

	require.NoError(t, release())
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lock file should be removed after release")
}

func TestAcquireFailsWhenHeldByLiveProcess(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "mzb.lock")

	release, err := Acquire(lockPath, "backup")
	require.NoError(t, err)
	defer release()

	// Our own pid is alive, so a second acquire must fail.
	_, err = Acquire(lockPath, "compact")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already locked")
	assert.Contains(t, err.Error(), "backup")
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "mzb.lock")

	// Write a lock for a pid that cannot exist.
	require.NoError(t, writeLock(lockPath, &Entry{
		Pid:       1 << 30,
		Job:       "backup",
		StartedAt: "2026-01-01T00:00:00Z",
	}))

	release, err := Acquire(lockPath, "backup")
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestReleaseIdempotent(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "mzb.lock")

	release, err := Acquire(lockPath, "backup")
	require.NoError(t, err)
	require.NoError(t, release())
	assert.NoError(t, release(), "releasing an already-released lock is not an error")
}
