//go:build windows

package storage

import (
	"os"

	"golang.org/x/sys/windows"
)

// The first byte of the sidecar is the lock region.
const lockRegionBytes = 1

func tryLockFile(f *os.File) error {
	var ol windows.Overlapped
	return windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, lockRegionBytes, 0, &ol)
}

func unlockFile(f *os.File) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, lockRegionBytes, 0, &ol)
}
