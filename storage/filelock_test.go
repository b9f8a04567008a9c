package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_TimesOutWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc123DEF45.json")
	held := NewFileLock(path)
	require.NoError(t, held.Lock(context.Background(), time.Second))

	waiter := NewFileLock(path)
	err := waiter.Lock(context.Background(), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, held.Unlock())
	require.NoError(t, waiter.Lock(context.Background(), time.Second))
	require.NoError(t, waiter.Unlock())
}

func TestFileLock_ContextEndsWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc123DEF45.json")
	held := NewFileLock(path)
	require.NoError(t, held.Lock(context.Background(), time.Second))
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewFileLock(path).Lock(ctx, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileLock_UnlockKeepsSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc123DEF45.json")
	lock := NewFileLock(path)

	assert.NoError(t, lock.Unlock(), "unheld unlock is a no-op")
	require.NoError(t, lock.Lock(context.Background(), time.Second))
	require.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())

	_, err := os.Stat(path + ".lock")
	assert.NoError(t, err)
}
