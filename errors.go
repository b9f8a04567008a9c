package ytpipeline

import (
	"ytpipeline/internal/retry"
	"ytpipeline/storage"
	"ytpipeline/transcript"
	"ytpipeline/youtube"
)

// Type aliases for convenient error handling.
type (
	// UpstreamError wraps a failure returned by a YouTube service.
	UpstreamError = youtube.UpstreamError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
	// PermanentError marks an error that was not retried.
	PermanentError = retry.PermanentError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrInvalidInput indicates no video ID could be extracted from the input.
	ErrInvalidInput = youtube.ErrInvalidInput
	// ErrVideoNotFound indicates the video does not exist.
	ErrVideoNotFound = youtube.ErrVideoNotFound
	// ErrUpstream matches any *UpstreamError.
	ErrUpstream = youtube.ErrUpstream
	// ErrYtdlpNotInstalled indicates the yt-dlp binary was not found.
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled
	// ErrTooLong indicates a video exceeds the speech-to-text ceiling.
	ErrTooLong = transcript.ErrTooLong

	// Storage errors
	ErrNotFound         = storage.ErrNotFound
	ErrIntegrity        = storage.ErrIntegrity
	ErrNoReliableSource = storage.ErrNoReliableSource
	ErrNoView           = storage.ErrNoView
	ErrLockTimeout      = storage.ErrLockTimeout
)

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
