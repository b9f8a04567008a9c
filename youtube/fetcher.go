// Package youtube resolves video references and talks to YouTube: the Data
// API for metadata and comments, the caption endpoints for transcripts and
// yt-dlp for audio.
package youtube

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for YouTube operations.
var (
	ErrInvalidInput      = errors.New("youtube: no video identifier in input")
	ErrVideoNotFound     = errors.New("youtube: video not found")
	ErrUpstream          = errors.New("youtube: upstream failure")
	ErrNoCaptions        = errors.New("youtube: no captions available")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
)

// UpstreamError wraps a failure returned by a YouTube service or a tool
// talking to it. errors.Is(err, ErrUpstream) reports true for it.
type UpstreamError struct {
	Op      string
	VideoID string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.VideoID == "" {
		return fmt.Sprintf("youtube: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("youtube: %s %s: %v", e.Op, e.VideoID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// MetadataFetcher builds VideoMetadata for a URL or bare video ID.
type MetadataFetcher interface {
	// FetchMetadata fails with ErrInvalidInput when no ID can be resolved,
	// ErrVideoNotFound when the video does not exist, and an *UpstreamError
	// for any other API failure. It does not retry.
	FetchMetadata(ctx context.Context, videoIDOrURL string) (*VideoMetadata, error)
}

// CommentFetcher lists top-level comment text for a video, most relevant first.
type CommentFetcher interface {
	FetchComments(ctx context.Context, videoID string, max int64) ([]string, error)
}
