// Package storage persists write-once video metadata records with integrity
// checksums, timestamped backups and a reliable read that can recover a
// corrupt record from an external view.
package storage

import (
	"context"
	"errors"
	"fmt"

	"ytpipeline/youtube"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists indicates an exclusive create hit an existing file.
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrIntegrity indicates a record failed checksum validation or could not be decoded.
	ErrIntegrity = errors.New("storage: integrity check failed")
	// ErrNoReliableSource indicates no valid record and no way to rebuild one.
	ErrNoReliableSource = errors.New("storage: no reliable metadata source")
	// ErrNoView indicates an operation needs a view layer that is not configured.
	ErrNoView = errors.New("storage: no view layer configured")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and entity context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("write", "read", "update", "backup").
	Op string
	// Entity is the entity type ("record", "backup", "lock").
	Entity string
	// ID is the video ID or path if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// ViewRow is one video's row in the external view (a spreadsheet).
type ViewRow struct {
	VideoID     string
	SourceURL   string
	Title       string
	ChannelName string
	Duration    string
}

// ViewLayer looks up rows in an external, read-only view of the catalogue.
type ViewLayer interface {
	// Row returns the row for videoID, or (nil, nil) when there is none.
	Row(ctx context.Context, videoID string) (*ViewRow, error)
}

// BackupSink receives a copy of every newly created record.
type BackupSink interface {
	Name() string
	Save(ctx context.Context, videoID, name string, data []byte) error
}

// Refetcher rebuilds metadata from a source URL during recovery.
type Refetcher = youtube.MetadataFetcher
