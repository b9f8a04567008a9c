package storage

import (
	"context"
	"os"
	"time"
)

const lockPollInterval = 10 * time.Millisecond

// FileLock is an advisory cross-process lock held on a "<path>.lock"
// sidecar. The sidecar stays on disk after Unlock; removing it would let a
// waiter that already opened the old inode lock a file nobody else sees.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unacquired lock guarding path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock acquires an exclusive lock, giving up with ErrLockTimeout after
// timeout or with ctx's error when ctx ends first.
func (l *FileLock) Lock(ctx context.Context, timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		if tryLockFile(f) == nil {
			l.file = f
			return nil
		}
		if !time.Now().Before(deadline) {
			f.Close()
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			f.Close()
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	unlockErr := unlockFile(f)
	if err := f.Close(); err != nil && unlockErr == nil {
		unlockErr = err
	}
	if unlockErr != nil {
		return &StorageError{Op: "unlock", Entity: "file", ID: l.path, Err: unlockErr}
	}
	return nil
}
