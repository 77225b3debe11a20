package lockfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire_SecondCallFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surge.lock")

	l1, ok, err := TryAcquire(path)
	require.NoError(t, err, "first TryAcquire()")
	require.True(t, ok, "expected first TryAcquire to succeed")
	defer l1.Release()

	_, ok, err = TryAcquire(path)
	require.NoError(t, err, "second TryAcquire()")
	assert.False(t, ok, "expected second TryAcquire to fail while first holds the lock")
}

func TestRelease_AllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surge.lock")

	l1, ok, err := TryAcquire(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l1.Release())

	l2, ok, err := TryAcquire(path)
	require.NoError(t, err, "second TryAcquire()")
	require.True(t, ok, "expected TryAcquire to succeed after Release")
	defer l2.Release()
}

func TestRelease_NilLockIsNoop(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
